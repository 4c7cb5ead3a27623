package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/tidwall/gjson"
	"github.com/urfave/cli/v3"

	"github.com/rubiojr/kallitechnia/pkg/blocks"
	"github.com/rubiojr/kallitechnia/pkg/cms"
	"github.com/rubiojr/kallitechnia/pkg/config"
	applog "github.com/rubiojr/kallitechnia/pkg/log"
	"github.com/rubiojr/kallitechnia/pkg/media"
)

// RenderCommand creates the render command
func RenderCommand() *cli.Command {
	return &cli.Command{
		Name:      "render",
		Usage:     "Render a JSON sections file to HTML",
		ArgsUsage: "<file|->",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "tenant",
				Usage: "Tenant whose blocks are rendered (defaults to the configured tenant)",
			},
			&cli.BoolFlag{
				Name:  "resolve-forms",
				Usage: "Load form references that are not populated from the CMS",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the render result as JSON instead of HTML",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() != 1 {
				return fmt.Errorf("expected exactly one input file, use - for stdin")
			}
			cfg, err := config.LoadConfig(c.String("config"))
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if t := c.String("tenant"); t != "" {
				cfg.Tenant = t
			}
			data, err := readInput(c.Args().First())
			if err != nil {
				return err
			}
			return renderFile(ctx, os.Stdout, cfg, data, c.Bool("resolve-forms"), c.Bool("json"))
		},
	}
}

func readInput(name string) ([]byte, error) {
	if name == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return data, nil
}

// sectionsOf accepts a bare sections array or a page/homepage document that
// carries one under "sections", as well as a Payload list response.
func sectionsOf(data []byte) ([]byte, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("input is not valid JSON")
	}
	res := gjson.ParseBytes(data)
	for _, path := range []string{"@this", "sections", "docs.0.sections"} {
		if v := res.Get(path); v.IsArray() {
			return []byte(v.Raw), nil
		}
	}
	return nil, fmt.Errorf("no sections array found in input")
}

func renderFile(ctx context.Context, w io.Writer, cfg *config.Config, data []byte, resolveForms, asJSON bool) error {
	raw, err := sectionsOf(data)
	if err != nil {
		return err
	}

	pipeline := blocks.NewPipeline(cfg.Tenant)
	pipeline.Logger = applog.ForService("render")
	pipeline.Media = media.NewResolver(cfg.CMSURL)
	pipeline.Dev = cfg.DevMode
	if resolveForms {
		pipeline.Forms = cms.New(cfg.CMSURL,
			cms.WithTenant(cfg.Tenant),
			cms.WithTimeout(cfg.RequestTimeout.Duration),
		)
	}

	res := pipeline.RenderJSON(ctx, raw, blocks.PageContext{})
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(res)
	}

	if _, err := io.WriteString(w, string(res.HTML)); err != nil {
		return err
	}
	for _, s := range res.Skipped {
		fmt.Fprintf(os.Stderr, "skipped section %d (%s): %s\n", s.Index, s.Reason, s.Kind)
	}
	return nil
}
