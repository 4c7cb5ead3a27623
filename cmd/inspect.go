package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/tidwall/gjson"
	"github.com/urfave/cli/v3"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/rubiojr/kallitechnia/pkg/blocks"
	"github.com/rubiojr/kallitechnia/pkg/cms"
	"github.com/rubiojr/kallitechnia/pkg/config"
	applog "github.com/rubiojr/kallitechnia/pkg/log"
	"github.com/rubiojr/kallitechnia/pkg/media"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			Background(lipgloss.Color("235")).
			Padding(0, 1).
			Margin(0, 0, 1, 0)

	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1).
			Margin(0, 0, 1, 2)

	skippedStyle = sectionStyle.
			BorderForeground(lipgloss.Color("160"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	okStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("32"))

	failStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("160"))

	summaryStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("32")).
			Border(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color("32")).
			Padding(0, 1).
			Margin(0, 0, 1, 0)

	noDataStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true).
			Margin(1, 0)
)

// summaryFields are shown, when present, to identify a section.
var summaryFields = []string{"title", "heading", "subtitle", "text", "buttonText", "form.slug", "form"}

// InspectCommand creates the inspect command
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Fetch a page from the CMS and report how each section renders",
		ArgsUsage: "[slug]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "no-pager",
				Usage: "Disable pager and output directly to terminal",
				Value: false,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return inspectPage(ctx, c.String("config"), c.Args().First(), c.Bool("no-pager"))
		},
	}
}

func inspectPage(ctx context.Context, configPath, slug string, noPager bool) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	client := cms.New(cfg.CMSURL,
		cms.WithTenant(cfg.Tenant),
		cms.WithTimeout(cfg.RequestTimeout.Duration),
		cms.WithLogger(applog.ForService("cms")),
	)

	title := "Homepage"
	var sections []json.RawMessage
	if slug == "" || slug == "home" {
		sections, err = client.HomepageData(ctx)
	} else {
		var p *cms.Page
		p, err = client.Page(ctx, slug)
		if p != nil {
			title = fmt.Sprintf("%s (/%s)", p.Title, p.Slug)
			sections = p.Sections
		} else if err == nil {
			return fmt.Errorf("page %q not found for tenant %s", slug, cfg.Tenant)
		}
	}
	if err != nil {
		return fmt.Errorf("fetching %s: %w", title, err)
	}

	pipeline := blocks.NewPipeline(cfg.Tenant)
	pipeline.Media = media.NewResolver(cfg.CMSURL)
	pipeline.Forms = client
	res := pipeline.Render(ctx, sections, blocks.PageContext{PageSlug: slug, IsHomepage: slug == "" || slug == "home"})

	output := formatInspection(cfg, title, sections, res)
	if noPager || !isTerminal() {
		fmt.Print(output)
		return nil
	}
	return displayWithPager(output)
}

// formatInspection renders the section report for one page.
func formatInspection(cfg *config.Config, title string, sections []json.RawMessage, res blocks.Result) string {
	var out strings.Builder

	heading := fmt.Sprintf("%s · %s · %s", cases.Upper(language.Greek).String(cfg.Site.Name), title, cfg.CMSURL)
	out.WriteString(titleStyle.Render(heading))
	out.WriteString("\n")

	if len(sections) == 0 {
		out.WriteString(noDataStyle.Render("No sections on this page."))
		out.WriteString("\n")
		return out.String()
	}

	summary := fmt.Sprintf("%d sections: %d rendered, %d skipped (pass %s)",
		len(sections), res.Rendered, len(res.Skipped), res.PassID)
	out.WriteString(summaryStyle.Render(summary))
	out.WriteString("\n")

	skipped := make(map[int]blocks.Skip, len(res.Skipped))
	for _, s := range res.Skipped {
		skipped[s.Index] = s
	}

	for i, raw := range sections {
		out.WriteString(formatSection(i, raw, skipped))
		out.WriteString("\n")
	}
	return out.String()
}

func formatSection(i int, raw json.RawMessage, skipped map[int]blocks.Skip) string {
	var content strings.Builder

	kind := gjson.GetBytes(raw, "blockType").String()
	if kind == "" {
		kind = "(no blockType)"
	}
	header := fmt.Sprintf("#%d %s", i, kind)

	s, isSkipped := skipped[i]
	if isSkipped {
		header += "  " + failStyle.Render("✗ "+cases.Title(language.English).String(strings.ReplaceAll(s.Reason, "-", " ")))
	} else {
		header += "  " + okStyle.Render("✓ Rendered")
	}
	content.WriteString(lipgloss.NewStyle().Bold(true).Render(header))

	for _, field := range summaryFields {
		v := gjson.GetBytes(raw, field)
		if v.Type != gjson.String || v.String() == "" {
			continue
		}
		content.WriteString(fmt.Sprintf("\n%s: %s", field, truncateText(v.String(), 70)))
	}

	if isSkipped && s.Err != "" {
		content.WriteString("\n" + metaStyle.Render(s.Err))
	}
	if id := gjson.GetBytes(raw, "id").String(); id != "" {
		content.WriteString("\n" + metaStyle.Render("ID: "+id))
	}

	if isSkipped {
		return skippedStyle.Render(content.String())
	}
	return sectionStyle.Render(content.String())
}

func truncateText(s string, n int) string {
	r := []rune(strings.Join(strings.Fields(s), " "))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "…"
}

// isTerminal checks if stdout is a terminal
func isTerminal() bool {
	fileInfo, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// displayWithPager displays content using a pager
func displayWithPager(content string) error {
	pagerCmd := os.Getenv("PAGER")
	if pagerCmd == "" {
		for _, pager := range []string{"less", "more", "cat"} {
			if _, err := exec.LookPath(pager); err == nil {
				pagerCmd = pager
				break
			}
		}
	}

	if pagerCmd == "" {
		fmt.Print(content)
		return nil
	}

	args := []string{}
	if strings.Contains(pagerCmd, "less") {
		args = []string{"-R", "-S", "-F", "-X"}
	}

	cmd := exec.Command(pagerCmd, args...)
	cmd.Stdin = strings.NewReader(content)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd.Run()
}
