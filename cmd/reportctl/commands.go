package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ai-opportunities/report-portal/report-portal-backend/internal/bootstrap"
	"ai-opportunities/report-portal/report-portal-backend/internal/config"
	"ai-opportunities/report-portal/report-portal-backend/internal/reports"
	"ai-opportunities/report-portal/report-portal-backend/internal/reports/content"
	"ai-opportunities/report-portal/report-portal-backend/internal/reports/render"
	"ai-opportunities/report-portal/report-portal-backend/internal/reports/section"
)

// NewRootCmd builds the reportctl command tree
func NewRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "reportctl",
		Short:         "Render AI opportunity reports offline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to the JSON config file")

	root.AddCommand(
		newRenderCmd(&configPath),
		newHTMLCmd(&configPath),
		newSanitizeCmd(),
	)
	return root
}

// renderInput is shared by the render and html commands
type renderInput struct {
	configPath *string
	input      string
	business   string
	timeout    time.Duration
}

func (ri *renderInput) bindFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&ri.input, "input", "", "Render request JSON file, - for stdin")
	cmd.Flags().StringVar(&ri.business, "business", "", "Override the business name in the request")
	cmd.Flags().DurationVar(&ri.timeout, "timeout", 2*time.Minute, "Render timeout")
	_ = cmd.MarkFlagRequired("input")
}

// load reads the request and builds an assembler from the configuration
func (ri *renderInput) load(cmd *cobra.Command) (*reports.RenderRequest, *render.Assembler, error) {
	data, err := ri.read(cmd.InOrStdin())
	if err != nil {
		return nil, nil, err
	}

	if ri.business != "" {
		var body map[string]json.RawMessage
		if err := json.Unmarshal(data, &body); err == nil {
			name, _ := json.Marshal(ri.business)
			body["businessName"] = name
			data, _ = json.Marshal(body)
		}
	}

	var req reports.RenderRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, nil, describe(err)
	}

	cfg, err := config.LoadConfig(*ri.configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := bootstrap.NewLogger(cfg.Logging.Level)
	if err != nil {
		return nil, nil, err
	}
	assembler, err := bootstrap.NewAssembler(cfg, logger.WithOptions(zap.IncreaseLevel(zap.WarnLevel)))
	if err != nil {
		return nil, nil, err
	}
	return &req, assembler, nil
}

func (ri *renderInput) read(stdin io.Reader) ([]byte, error) {
	if ri.input == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(ri.input)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return data, nil
}

func (ri *renderInput) cover(req *reports.RenderRequest) section.Cover {
	var date time.Time
	if req.ReportDate != nil {
		date = req.ReportDate.UTC()
	}
	return section.DefaultCover(req.BusinessName, date)
}

func newRenderCmd(configPath *string) *cobra.Command {
	ri := &renderInput{configPath: configPath}
	var backend, out string

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a report request to PDF",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, assembler, err := ri.load(cmd)
			if err != nil {
				return err
			}
			if backend == "" {
				backend = req.Backend
			}
			b, err := render.ParseBackend(backend)
			if err != nil {
				return describe(err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), ri.timeout)
			defer cancel()

			pdf, err := assembler.Assemble(ctx, ri.cover(req), req.Sections, section.DefaultFooter(), b)
			if err != nil {
				return fmt.Errorf("failed to render report: %w", describe(err))
			}

			if out == "" {
				out = req.Filename()
			}
			if out == "-" {
				_, err = cmd.OutOrStdout().Write(pdf)
				return err
			}
			if err := os.WriteFile(out, pdf, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d bytes)\n", out, len(pdf))
			return nil
		},
	}

	ri.bindFlags(cmd)
	cmd.Flags().StringVar(&backend, "backend", "", "Rendering backend: vector, raster or browser")
	cmd.Flags().StringVar(&out, "out", "", "Output file, - for stdout (default <business>-ai-opportunities.pdf)")
	return cmd
}

func newHTMLCmd(configPath *string) *cobra.Command {
	ri := &renderInput{configPath: configPath}

	cmd := &cobra.Command{
		Use:   "html",
		Short: "Print the HTML rendition of a report request",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, assembler, err := ri.load(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), ri.timeout)
			defer cancel()

			html, err := assembler.HTML(ctx, ri.cover(req), req.Sections, section.DefaultFooter())
			if err != nil {
				return fmt.Errorf("failed to render html: %w", describe(err))
			}
			_, err = io.WriteString(cmd.OutOrStdout(), html)
			return err
		},
	}

	ri.bindFlags(cmd)
	return cmd
}

func newSanitizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sanitize",
		Short: "Clean model output read from stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), content.Sanitize(string(data))+"\n")
			return err
		},
	}
}

// describe expands validation errors into one line per field
func describe(err error) error {
	var ve *section.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	msg := "validation failed"
	for _, fe := range ve.Errors {
		msg += fmt.Sprintf("\n  %s: %s", fe.Field, fe.Message)
	}
	return fmt.Errorf("%s", msg)
}
