package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ashutosh-srijan/connector-code-sample/client"
	"github.com/ashutosh-srijan/connector-code-sample/internal/config"
	"github.com/ashutosh-srijan/connector-code-sample/internal/logger"
	"github.com/ashutosh-srijan/connector-code-sample/storage"
	"github.com/ashutosh-srijan/connector-code-sample/storage/decoder"
	"github.com/ashutosh-srijan/connector-code-sample/storage/rest"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const requestTimeout = 30 * time.Second

// globalFlags are the persistent flags; empty values defer to CONNECTOR_*.
type globalFlags struct {
	endpoint  string
	auth      string
	token     string
	transport string
	retries   int
	debug     bool
}

func main() {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// NewRootCmd constructs the root CLI command; exposed for unit testing.
func NewRootCmd() *cobra.Command {
	g := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:           "connectorctl",
		Short:         "connectorctl sends requests to a remote API and manages its entities",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.Logger = logger.Console(cmd.ErrOrStderr(), g.debug)
			if g.debug {
				// Turns on the client's exchange logging journal.
				_ = os.Setenv("CONNECTOR_DEBUG", "true")
				log.Debug().Msg("debug logging enabled")
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&g.endpoint, "endpoint", "", "API endpoint (default $CONNECTOR_ENDPOINT)")
	rootCmd.PersistentFlags().StringVar(&g.auth, "auth", "", "Authentication scheme: bearer, basic, header, anonymous, devmode")
	rootCmd.PersistentFlags().StringVar(&g.token, "token", "", "Bearer token or header value (default $CONNECTOR_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&g.transport, "transport", "", "HTTP transport: net/http or resty")
	rootCmd.PersistentFlags().IntVar(&g.retries, "retries", -1, "Retries for failed requests (default $CONNECTOR_RETRY_MAX_RETRIES)")
	rootCmd.PersistentFlags().BoolVarP(&g.debug, "debug", "d", false, "Enable verbose debug output")

	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodDelete} {
		rootCmd.AddCommand(newRequestCmd(g, method))
	}
	rootCmd.AddCommand(newEntityCmd(g))

	return rootCmd
}

// newClient loads CONNECTOR_* settings, applies the flags over them and
// builds the API client.
func (g *globalFlags) newClient() (*client.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if g.endpoint != "" {
		cfg.Endpoint = g.endpoint
	}
	if g.auth != "" {
		cfg.Auth = g.auth
	}
	if g.token != "" {
		cfg.Token = g.token
	}
	if g.transport != "" {
		cfg.Transport = g.transport
	}
	if g.retries >= 0 {
		cfg.RetryMaxRetries = g.retries
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Debug().
		Str("endpoint", cfg.Endpoint).
		Str("auth", cfg.Auth).
		Str("transport", cfg.Transport).
		Msg("client configured")
	return cfg.NewClient()
}

func newRequestCmd(g *globalFlags, method string) *cobra.Command {
	var (
		data    string
		headers []string
		include bool
	)

	cmd := &cobra.Command{
		Use:   strings.ToLower(method) + " <uri>",
		Short: "Send a " + method + " request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := parseHeaders(headers)
			if err != nil {
				return err
			}
			c, err := g.newClient()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()

			var body any
			if data != "" {
				body, err = readData(cmd.InOrStdin(), data)
				if err != nil {
					return err
				}
			}

			start := time.Now()
			resp, err := send(ctx, c, method, args[0], body, h)
			elapsed := time.Since(start)
			if err != nil {
				log.Error().
					Err(err).
					Str("method", method).
					Str("uri", args[0]).
					Int("status_code", client.StatusCode(err)).
					Dur("elapsed", elapsed).
					Msg("request failed")
				return err
			}
			defer func() { _ = resp.Body.Close() }()

			log.Debug().
				Str("method", method).
				Str("uri", args[0]).
				Int("status_code", resp.StatusCode).
				Dur("elapsed", elapsed).
				Msg("request completed")

			out := cmd.OutOrStdout()
			if include {
				fmt.Fprintf(out, "%s %s\n", resp.Proto, resp.Status)
				_ = resp.Header.Write(out)
				fmt.Fprintln(out)
			}
			_, err = io.Copy(out, resp.Body)
			return err
		},
	}

	if method == http.MethodPost || method == http.MethodPut || method == http.MethodDelete {
		cmd.Flags().StringVar(&data, "data", "", "Request body; @file reads a file, @- reads stdin")
	}
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "Extra header as 'Name: value' (repeatable)")
	cmd.Flags().BoolVarP(&include, "include", "i", false, "Print the status line and response headers")
	return cmd
}

func send(ctx context.Context, c *client.Client, method, uri string, body any, h http.Header) (*http.Response, error) {
	switch method {
	case http.MethodGet:
		return c.Get(ctx, uri, h)
	case http.MethodHead:
		return c.Head(ctx, uri, h)
	case http.MethodPost:
		return c.Post(ctx, uri, body, h)
	case http.MethodPut:
		return c.Put(ctx, uri, body, h)
	default:
		return c.Delete(ctx, uri, body, h)
	}
}

func parseHeaders(raw []string) (http.Header, error) {
	h := http.Header{}
	for _, line := range raw {
		name, value, ok := strings.Cut(line, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid header %q, want 'Name: value'", line)
		}
		h.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}
	return h, nil
}

// readData resolves a --data value: "@-" is stdin, "@path" a file, and
// anything else the literal body.
func readData(stdin io.Reader, data string) ([]byte, error) {
	switch {
	case data == "@-":
		return io.ReadAll(stdin)
	case strings.HasPrefix(data, "@"):
		return os.ReadFile(data[1:])
	default:
		return []byte(data), nil
	}
}

// storageFlags describe the REST storage client the entity commands use.
type storageFlags struct {
	path       string
	singlePath string
	format     string
	listPath   string
	countPath  string
	idField    string
	params     map[string]string
}

func (s *storageFlags) configuration() storage.Configuration {
	cfg := storage.Configuration{"endpoint": s.path}
	set := func(key, v string) {
		if v != "" {
			cfg[key] = v
		}
	}
	set("single_path", s.singlePath)
	set("format", s.format)
	set("list_path", s.listPath)
	set("count_path", s.countPath)
	set("id_field", s.idField)
	if len(s.params) > 0 {
		p := make(map[string]any, len(s.params))
		for k, v := range s.params {
			p[k] = v
		}
		cfg["parameters"] = p
	}
	return cfg
}

func (s *storageFlags) open(g *globalFlags) (storage.EntityStorageClient, error) {
	c, err := g.newClient()
	if err != nil {
		return nil, err
	}
	reg := storage.NewRegistry()
	if err := rest.Register(reg, c); err != nil {
		return nil, err
	}
	return reg.Create(rest.PluginID, s.configuration())
}

func newEntityCmd(g *globalFlags) *cobra.Command {
	s := &storageFlags{}

	cmd := &cobra.Command{
		Use:   "entity",
		Short: "Query and modify entities served by a REST collection",
	}
	cmd.PersistentFlags().StringVar(&s.path, "path", "", "Collection path (required)")
	cmd.PersistentFlags().StringVar(&s.singlePath, "single-path", "", "Item path with an {id} placeholder (default <path>/{id})")
	cmd.PersistentFlags().StringVar(&s.format, "format", "", "Response format: json or yaml (default json)")
	cmd.PersistentFlags().StringVar(&s.listPath, "list-path", "", "gjson path to the records in a collection response")
	cmd.PersistentFlags().StringVar(&s.countPath, "count-path", "", "gjson path to the total in a collection response")
	cmd.PersistentFlags().StringVar(&s.idField, "id-field", "", "Entity field holding the ID (default id)")
	cmd.PersistentFlags().StringToStringVar(&s.params, "param", nil, "Query parameter sent with every request (repeatable)")
	_ = cmd.MarkPersistentFlagRequired("path")

	cmd.AddCommand(newEntityQueryCmd(g, s))
	cmd.AddCommand(newEntityCountCmd(g, s))
	cmd.AddCommand(newEntityLoadCmd(g, s))
	cmd.AddCommand(newEntitySaveCmd(g, s))
	cmd.AddCommand(newEntityDeleteCmd(g, s))
	cmd.AddCommand(newEntityImportCmd(g, s))
	return cmd
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func queryParams(filters map[string]string) storage.Parameters {
	params := make(storage.Parameters, len(filters))
	for k, v := range filters {
		params[k] = v
	}
	return params
}

func newEntityQueryCmd(g *globalFlags, s *storageFlags) *cobra.Command {
	var filters map[string]string
	cmd := &cobra.Command{
		Use:   "query",
		Short: "List entities",
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := s.open(g)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			entities, err := sc.Query(ctx, queryParams(filters))
			if err != nil {
				return err
			}
			log.Debug().Int("count", len(entities)).Msg("query completed")
			return printJSON(cmd.OutOrStdout(), entities)
		},
	}
	cmd.Flags().StringToStringVar(&filters, "filter", nil, "Query parameter for this request only (repeatable)")
	return cmd
}

func newEntityCountCmd(g *globalFlags, s *storageFlags) *cobra.Command {
	var filters map[string]string
	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count entities",
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := s.open(g)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			n, err := sc.Count(ctx, queryParams(filters))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), n)
			return err
		},
	}
	cmd.Flags().StringToStringVar(&filters, "filter", nil, "Query parameter for this request only (repeatable)")
	return cmd
}

func newEntityLoadCmd(g *globalFlags, s *storageFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "load <id>...",
		Short: "Load entities by ID",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := s.open(g)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			if len(args) == 1 {
				e, err := sc.Load(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), e)
			}
			entities, err := sc.LoadMultiple(ctx, args)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entities)
		},
	}
}

func newEntitySaveCmd(g *globalFlags, s *storageFlags) *cobra.Command {
	var data, inputFormat string
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Create or replace one entity",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := decodeRecords(cmd.InOrStdin(), data, inputFormat)
			if err != nil {
				return err
			}
			if len(records) != 1 {
				return fmt.Errorf("save expects one entity, got %d", len(records))
			}
			sc, err := s.open(g)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			saved, err := sc.Save(ctx, records[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), saved)
		},
	}
	cmd.Flags().StringVar(&data, "data", "", "Entity document; @file reads a file, @- reads stdin (required)")
	cmd.Flags().StringVar(&inputFormat, "input-format", decoder.FormatJSON, "Entity document format: json or yaml")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

func newEntityDeleteCmd(g *globalFlags, s *storageFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := s.open(g)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			if err := sc.Delete(ctx, args[0]); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Entity deleted: %s\n", args[0])
			return err
		},
	}
}

func newEntityImportCmd(g *globalFlags, s *storageFlags) *cobra.Command {
	var data, inputFormat string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Save a list of entities in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := decodeRecords(cmd.InOrStdin(), data, inputFormat)
			if err != nil {
				return err
			}
			sc, err := s.open(g)
			if err != nil {
				return err
			}
			wcfg, err := storage.LoadWriterConfig()
			if err != nil {
				return err
			}
			var failed atomic.Int32
			wcfg.ErrorHandler = func(key string, err error) {
				failed.Add(1)
				log.Error().Err(err).Str("id", key).Msg("import write failed")
			}
			idField := s.idField
			if idField == "" {
				idField = "id"
			}

			w := storage.NewAsyncWriter(sc, wcfg)
			start := time.Now()
			for _, e := range records {
				if err := w.Save(cmd.Context(), idField, e); err != nil {
					_ = w.Close()
					return err
				}
			}
			if err := w.Close(); err != nil {
				return err
			}
			log.Debug().Int("entities", len(records)).Dur("elapsed", time.Since(start)).Msg("import completed")

			if n := failed.Load(); n > 0 {
				return fmt.Errorf("%d of %d entities failed to import", n, len(records))
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Imported %d entities\n", len(records))
			return err
		},
	}
	cmd.Flags().StringVar(&data, "data", "", "Entity list or single entity; @file reads a file, @- reads stdin (required)")
	cmd.Flags().StringVar(&inputFormat, "input-format", decoder.FormatJSON, "Document format: json or yaml")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

// decodeRecords reads a document holding one entity or a list of them.
func decodeRecords(stdin io.Reader, data, format string) ([]storage.Entity, error) {
	raw, err := readData(stdin, data)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("empty entity document")
	}
	v, err := decoder.NewFactory().Decode(format, raw)
	if err != nil {
		return nil, err
	}
	switch doc := v.(type) {
	case map[string]any:
		return []storage.Entity{doc}, nil
	case []any:
		out := make([]storage.Entity, 0, len(doc))
		for i, item := range doc {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("record %d is %T, not an object", i, item)
			}
			out = append(out, m)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("entity document is %T, not an object or list", v)
	}
}
