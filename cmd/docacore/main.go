// Command docacore is the composition root for the document core: it wires
// configuration, storage, and the external RPC collaborators into the
// filter compiler and the two file pipelines, then dispatches one of
// upload/download/query against stdin/stdout. Grounded on cmd/psqldef's
// go-flags option parsing and signal.NotifyContext shutdown.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
	"golang.org/x/term"

	"github.com/doka-one/doka-document-core/internal/config"
	"github.com/doka-one/doka-document-core/internal/filter/ast"
	"github.com/doka-one/doka-document-core/internal/filter/querygen"
	"github.com/doka-one/doka-document-core/internal/logging"
	"github.com/doka-one/doka-document-core/internal/model"
	"github.com/doka-one/doka-document-core/internal/pipeline/download"
	"github.com/doka-one/doka-document-core/internal/pipeline/upload"
	"github.com/doka-one/doka-document-core/internal/rpc"
	"github.com/doka-one/doka-document-core/internal/storage"
	"github.com/doka-one/doka-document-core/internal/storage/mysql"
	"github.com/doka-one/doka-document-core/internal/storage/postgres"
	"github.com/doka-one/doka-document-core/internal/tags"
)

type options struct {
	ConfigFile   string `short:"c" long:"config" description:"Path to the YAML configuration file" value-name:"filename" default:"docacore.yaml"`
	CustomerCode string `long:"customer-code" description:"Customer code, used to resolve the customer key and schema" required:"true"`
	Prompt       bool   `long:"password-prompt" description:"Force a storage user password prompt, overriding the configuration file"`

	Upload struct {
		FileRef  string `long:"file-ref" description:"Opaque file reference to assign" required:"true"`
		MimeType string `long:"mime-type" description:"MIME type of the uploaded content" default:"application/octet-stream"`
		Item     string `long:"item" description:"Owning item identifier" required:"true"`
	} `command:"upload" description:"Upload and encrypt a file read from stdin"`

	Download struct {
		FileRef string `long:"file-ref" description:"File reference to reassemble" required:"true"`
	} `command:"download" description:"Decrypt and reassemble a file to stdout"`

	Query struct {
		Filter string   `long:"filter" description:"Filter expression" required:"true"`
		Select []string `long:"select" description:"Tag to include in the result columns"`
		Order  []string `long:"order" description:"Tag to order by"`
	} `command:"query" description:"Compile a filter expression into a SQL query and print it"`
}

func main() {
	logging.Init()

	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		os.Exit(1)
	}

	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	if opts.Prompt {
		fmt.Printf("Enter Password: ")
		pass, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			log.Fatalf("reading password: %v", err)
		}
		fmt.Println()
		cfg.Storage.Password = string(pass)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := openStorage(cfg.Storage)
	if err != nil {
		log.Fatalf("opening storage: %v", err)
	}
	defer db.Close()

	schema := "cs_" + opts.CustomerCode
	fileSchema := "fs_" + opts.CustomerCode
	rpcHTTPClient := &http.Client{Timeout: cfg.RPC.Timeout}
	keyManager := &rpc.HTTPKeyManagerClient{BaseURL: cfg.RPC.KeyManagerURL, HTTPClient: rpcHTTPClient}

	switch parser.Active.Name {
	case "upload":
		extractor := &rpc.HTTPTextExtractor{BaseURL: cfg.RPC.TikaURL, HTTPClient: rpcHTTPClient}
		indexer := &rpc.HTTPIndexer{BaseURL: cfg.RPC.IndexerURL, HTTPClient: rpcHTTPClient}
		p := &upload.Pipeline{
			DB:               db,
			KeyManager:       keyManager,
			Extractor:        extractor,
			Indexer:          indexer,
			StagingGroupSize: cfg.StagingGroupSize,
			Logger:           slog.Default(),
		}
		ref, err := p.Run(ctx, upload.Request{
			CustomerSchema: fileSchema,
			CustomerCode:   opts.CustomerCode,
			ItemInfo:       opts.Upload.Item,
			FileRef:        opts.Upload.FileRef,
			MimeType:       opts.Upload.MimeType,
		}, os.Stdin)
		if err != nil {
			log.Fatalf("upload failed: %v", err)
		}
		json.NewEncoder(os.Stdout).Encode(ref)

	case "download":
		p := &download.Pipeline{DB: db, KeyManager: keyManager, WorkerPoolOverride: cfg.WorkerPoolSize}
		res, err := p.Run(ctx, fileSchema, opts.CustomerCode, opts.Download.FileRef)
		if err != nil {
			log.Fatalf("download failed: %v", err)
		}
		if _, err := io.Copy(os.Stdout, bytes.NewReader(res.Content)); err != nil {
			log.Fatalf("writing output: %v", err)
		}

	case "query":
		node, err := ast.Compile(opts.Query.Filter)
		if err != nil {
			log.Fatalf("compiling filter: %v", err)
		}
		lookup := tags.NewCachedLookup(tagSource{db: db, schema: schema})
		gen := &querygen.Generator{CustomerSchema: schema, Lookup: lookup.Lookup}
		sqlText, err := gen.Generate(ctx, node, opts.Query.Select, opts.Query.Order, querygen.Live)
		if err != nil {
			log.Fatalf("generating query: %v", err)
		}
		fmt.Println(sqlText)

	default:
		log.Fatalf("no command given; run with --help")
	}
}

func openStorage(cfg config.StorageConfig) (storage.Database, error) {
	sc := storage.Config{
		DbName:          cfg.DbName,
		User:            cfg.User,
		Password:        cfg.Password,
		Host:            cfg.Host,
		Port:            cfg.Port,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}
	switch cfg.Driver {
	case config.DriverMySQL:
		return mysql.NewDatabase(sc)
	default:
		return postgres.NewDatabase(sc)
	}
}

// tagSource adapts storage.Database to tags.Source by pinning the customer
// schema, since the query generator's cache is keyed on tag name alone.
type tagSource struct {
	db     storage.Database
	schema string
}

func (t tagSource) TagDefinitions(ctx context.Context, names []string) ([]model.TagDefinition, error) {
	return t.db.TagDefinitions(ctx, t.schema, names)
}
