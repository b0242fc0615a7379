// Command zlib is a thin cobra CLI driver over the core: it composes
// Credential Store → Credential Manager → Session Pool → Orchestrator for
// commands that talk to the upstream service, and Catalog Services over
// Catalog Repositories for everything else, per spec §6.4.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/zlib-go/zlib/catalog"
	"github.com/zlib-go/zlib/config"
	"github.com/zlib-go/zlib/credential"
	"github.com/zlib-go/zlib/manager"
	"github.com/zlib-go/zlib/orchestrator"
	"github.com/zlib-go/zlib/session"
	"github.com/zlib-go/zlib/upstream"
	"github.com/zlib-go/zlib/upstream/zlib"
	"github.com/zlib-go/zlib/zerr"
	"github.com/zlib-go/zlib/zlog"
)

// Exit codes, per spec §6.4.
const (
	exitConfigError   = 2
	exitNoCredentials = 3
	exitAllExhausted  = 4
	exitCatalogError  = 5
	exitCancelled     = 6
)

var (
	credentialsPath string
	statePathFlag   string
	dbPath          string
	baseURL         string
	verbose         bool
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	root := newRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "zlib",
		Short: "batch search/download client with credential rotation and a local catalog",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			zlog.Level = zlog.InfoLevel
			if verbose {
				zlog.Level = zlog.DebugLevel
			}
		},
	}

	root.PersistentFlags().StringVar(&credentialsPath, "credentials", "", "path to the structured credential file (TOML)")
	root.PersistentFlags().StringVar(&statePathFlag, "state-file", "", "override the rotation state file path")
	root.PersistentFlags().StringVar(&dbPath, "db", "", "override the catalog database path")
	root.PersistentFlags().StringVar(&baseURL, "base-url", "", "override the upstream service base URL")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(
		newSearchCommand(),
		newDownloadCommand(),
		newBrowseCommand(),
		newSaveCommand(),
		newUnsaveCommand(),
		newListCommand(),
		newDownloadsCommand(),
		newStatsCommand(),
		newExportCommand(),
		newImportCommand(),
		newVacuumCommand(),
	)
	return root
}

// coreDeps is the Credential Store → Credential Manager → Session Pool →
// Orchestrator chain, wired once per command invocation that needs it.
type coreDeps struct {
	mgr     *manager.Manager
	pool    *session.Pool
	orch    *orchestrator.Orchestrator
	catalog *catalog.Service
}

func (d *coreDeps) Close() {
	if d.catalog != nil {
		_ = d.catalog.Close()
	}
}

func buildCore(ctx context.Context, needsCredentials bool) (*coreDeps, error) {
	path, err := resolveDBPath()
	if err != nil {
		return nil, &zerr.ConfigError{Err: err}
	}
	catalogSvc, err := catalog.Open(path)
	if err != nil {
		return nil, &zerr.ConfigError{Err: err}
	}

	deps := &coreDeps{catalog: catalogSvc}
	if !needsCredentials {
		return deps, nil
	}

	src := config.CredentialSource(credentialsPath)
	loaded, err := credential.Load(src)
	if err != nil {
		deps.Close()
		return nil, err
	}
	if len(loaded.Credentials) == 0 {
		deps.Close()
		return nil, &zerr.NoValidCredentials{Count: 0}
	}

	statePath := config.StatePath(loaded.StateFile, statePathFlag)
	transport := upstream.NewTransport(10, 30*time.Second)
	client := zlib.NewClient(baseURL, transport)

	mgr, err := manager.New(loaded.Credentials, client, statePath)
	if err != nil {
		deps.Close()
		return nil, err
	}
	if err := mgr.ValidateAll(ctx); err != nil {
		deps.Close()
		return nil, err
	}

	pool := session.New(client, mgr)
	orch := orchestrator.New(pool, mgr, catalogSvc)

	deps.mgr, deps.pool, deps.orch = mgr, pool, orch
	return deps, nil
}

func resolveDBPath() (string, error) {
	if dbPath != "" {
		return dbPath, nil
	}
	return config.DatabasePath()
}

func newSearchCommand() *cobra.Command {
	var language, extension, order string
	var yearFrom, yearTo, page, limit int
	var allPages, save bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "search the upstream service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := buildCore(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer deps.Close()

			filters := upstream.SearchFilters{
				YearFrom:  yearFrom,
				YearTo:    yearTo,
				Language:  language,
				Extension: extension,
				Order:     upstream.Order(order),
				Page:      page,
				Limit:     limit,
			}

			var books []upstream.Book
			if allPages {
				books, err = deps.orch.SearchAllPages(cmd.Context(), args[0], filters, orchestrator.SearchOptions{SaveToCatalog: save})
			} else {
				books, err = deps.orch.Search(cmd.Context(), args[0], filters, orchestrator.SearchOptions{SaveToCatalog: save})
			}
			if err != nil {
				return err
			}
			return printJSON(books)
		},
	}

	cmd.Flags().StringVar(&language, "language", "", "filter by language")
	cmd.Flags().StringVar(&extension, "extension", "", "filter by file extension")
	cmd.Flags().StringVar(&order, "order", "", "result order: popular, year, or title")
	cmd.Flags().IntVar(&yearFrom, "year-from", 0, "minimum publication year")
	cmd.Flags().IntVar(&yearTo, "year-to", 0, "maximum publication year")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&limit, "limit", 25, "results per page, 1-100")
	cmd.Flags().BoolVar(&allPages, "all-pages", false, "iterate every page, rotating credentials between pages")
	cmd.Flags().BoolVar(&save, "save", false, "ingest results into the local catalog")

	return cmd
}

func newDownloadCommand() *cobra.Command {
	var dir, hash, title, extension string

	cmd := &cobra.Command{
		Use:   "download <external-id>",
		Short: "download a single book by external id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := buildCore(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer deps.Close()

			if dir == "" {
				dir = "."
			}
			book := upstream.Book{ExternalID: args[0], Hash: hash, Title: title, Extension: extension}
			d, err := deps.orch.Download(cmd.Context(), book, orchestrator.DownloadOptions{Dir: dir})
			if err != nil {
				return err
			}
			return printJSON(d)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", ".", "destination directory")
	cmd.Flags().StringVar(&hash, "hash", "", "book hash, required by the upstream download endpoint")
	cmd.Flags().StringVar(&title, "title", "book", "title, used to derive the filename if upstream omits one")
	cmd.Flags().StringVar(&extension, "extension", "", "file extension, used to derive the filename if upstream omits one")

	return cmd
}

func newBrowseCommand() *cobra.Command {
	var title, language, extension, author, yearFrom, yearTo string
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "browse the local catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := buildCore(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer deps.Close()

			filters := catalog.BookFilters{
				TitleContains:  title,
				Language:       language,
				Extension:      extension,
				AuthorContains: author,
				YearFrom:       yearFrom,
				YearTo:         yearTo,
			}
			if limit <= 0 {
				limit = 50
			}
			books, total, err := deps.catalog.Browse(cmd.Context(), filters, limit, offset)
			if err != nil {
				return err
			}
			return printJSON(struct {
				Total int             `json:"total"`
				Books []*catalog.Book `json:"books"`
			}{total, books})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "substring match on title")
	cmd.Flags().StringVar(&language, "language", "", "exact match on language")
	cmd.Flags().StringVar(&extension, "extension", "", "exact match on extension")
	cmd.Flags().StringVar(&author, "author", "", "substring match on author")
	cmd.Flags().StringVar(&yearFrom, "year-from", "", "zero-padded lower bound on year")
	cmd.Flags().StringVar(&yearTo, "year-to", "", "zero-padded upper bound on year")
	cmd.Flags().IntVar(&limit, "limit", 50, "page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "page offset")

	return cmd
}

func newSaveCommand() *cobra.Command {
	var notes string
	var tags []string
	var priority int

	cmd := &cobra.Command{
		Use:   "save <book-id>",
		Short: "bookmark a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := buildCore(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer deps.Close()
			s, err := deps.catalog.Saved.Save(cmd.Context(), args[0], notes, tags, priority)
			if err != nil {
				return err
			}
			return printJSON(s)
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "free-text notes")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "comma-separated tags")
	cmd.Flags().IntVar(&priority, "priority", 0, "priority, higher sorts first")
	return cmd
}

func newUnsaveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unsave <book-id>",
		Short: "remove a bookmark",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := buildCore(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer deps.Close()
			return deps.catalog.Saved.Unsave(cmd.Context(), args[0])
		},
	}
}

func newListCommand() *cobra.Command {
	list := &cobra.Command{Use: "list", Short: "manage reading lists"}

	create := &cobra.Command{
		Use:  "create <name>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := buildCore(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer deps.Close()
			l, err := deps.catalog.CreateList(cmd.Context(), args[0], "")
			if err != nil {
				return err
			}
			return printJSON(l)
		},
	}

	add := &cobra.Command{
		Use:  "add <name> <book-id>",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := buildCore(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer deps.Close()
			return deps.catalog.AddToList(cmd.Context(), args[0], args[1])
		},
	}

	remove := &cobra.Command{
		Use:  "remove <name> <book-id>",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := buildCore(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer deps.Close()
			return deps.catalog.RemoveFromList(cmd.Context(), args[0], args[1])
		},
	}

	show := &cobra.Command{
		Use:  "show <name>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := buildCore(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer deps.Close()
			books, err := deps.catalog.ListBooks(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(books)
		},
	}

	deleteCmd := &cobra.Command{
		Use:  "delete <name>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := buildCore(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer deps.Close()
			return deps.catalog.DeleteList(cmd.Context(), args[0])
		},
	}

	list.AddCommand(create, add, remove, show, deleteCmd)
	return list
}

func newDownloadsCommand() *cobra.Command {
	var limit int
	var identity string

	cmd := &cobra.Command{
		Use:   "downloads",
		Short: "list recent download history",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := buildCore(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer deps.Close()

			if limit <= 0 {
				limit = 50
			}
			var downloads []*catalog.Download
			if identity != "" {
				downloads, err = deps.catalog.Downloads.ListByCredential(cmd.Context(), identity, limit)
			} else {
				downloads, err = deps.catalog.Downloads.ListRecent(cmd.Context(), limit)
			}
			if err != nil {
				return err
			}
			return printJSON(downloads)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "max rows to return")
	cmd.Flags().StringVar(&identity, "credential", "", "filter by credential identity")
	return cmd
}

func newStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "summarize the local catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := buildCore(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer deps.Close()
			s, err := deps.catalog.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(s)
		},
	}
}

func newExportCommand() *cobra.Command {
	var format, out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "export the catalog as JSON or CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := buildCore(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer deps.Close()

			w := os.Stdout
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return &zerr.CatalogError{Op: "export", Err: err}
				}
				defer f.Close()
				return exportTo(cmd, deps, format, f)
			}
			return exportTo(cmd, deps, format, w)
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "json or csv")
	cmd.Flags().StringVar(&out, "out", "", "output file, defaults to stdout")
	return cmd
}

func exportTo(cmd *cobra.Command, deps *coreDeps, format string, w *os.File) error {
	switch format {
	case "csv":
		return deps.catalog.ExportCSV(cmd.Context(), w)
	default:
		return deps.catalog.ExportJSON(cmd.Context(), w)
	}
}

func newImportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "import a JSON export into the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := buildCore(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer deps.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return &zerr.CatalogError{Op: "import", Err: err}
			}
			defer f.Close()

			result, err := deps.catalog.ImportJSON(cmd.Context(), f)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	return cmd
}

func newVacuumCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "vacuum",
		Short: "compact the catalog database file",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := buildCore(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer deps.Close()
			return deps.catalog.Vacuum()
		},
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// exitCodeFor maps the error taxonomy in zerr onto spec §6.4's exit codes.
func exitCodeFor(err error) int {
	var configErr *zerr.ConfigError
	var noCreds *zerr.NoValidCredentials
	var exhausted *zerr.AllCredentialsExhausted
	var catalogErr *zerr.CatalogError
	var cancelled *zerr.Cancelled

	switch {
	case errors.As(err, &configErr):
		return exitConfigError
	case errors.As(err, &noCreds):
		return exitNoCredentials
	case errors.As(err, &exhausted):
		return exitAllExhausted
	case errors.As(err, &catalogErr):
		return exitCatalogError
	case errors.As(err, &cancelled):
		return exitCancelled
	default:
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
}
