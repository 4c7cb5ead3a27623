package blocks

import (
	"html/template"
	"strings"

	"github.com/rubiojr/kallitechnia/pkg/media"
)

const defaultDownloadLabel = "Κατέβασε το Πρόγραμμα (PDF)"

type ScheduleSlot struct {
	Day   Str `json:"day"`
	Time  Str `json:"time"`
	Level Str `json:"level"`
}

type ProgramDetail struct {
	base
	Title          Str                `json:"title"`
	Image          Image              `json:"image"`
	ImagePosition  Str                `json:"imagePosition"`
	Description    Rich               `json:"description"`
	Schedule       List[ScheduleSlot] `json:"schedule"`
	CoachName      Str                `json:"coachName"`
	CoachPhoto     Image              `json:"coachPhoto"`
	CoachStudies   Str                `json:"coachStudies"`
	CoachBio       Rich               `json:"coachBio"`
	AdditionalInfo Rich               `json:"additionalInfo"`
	DownloadLabel  Str                `json:"downloadLabel"`
	DownloadURL    Str                `json:"downloadUrl"`
	// DownloadFile is an uploaded file used when no URL is given.
	DownloadFile Image `json:"downloadFile"`
}

func (p *ProgramDetail) Render(rc *RenderContext) (template.HTML, error) {
	return execute("program-detail", map[string]any{
		"Title":          p.Title.String(),
		"Image":          rc.image(p.Image),
		"Right":          imageOnRight(p.ImagePosition),
		"Description":    p.Description.Text(),
		"AdditionalInfo": p.AdditionalInfo.Text(),
		"Schedule":       p.Schedule,
		"CoachName":      p.CoachName.String(),
		"CoachPhoto":     rc.image(p.CoachPhoto),
		"CoachStudies":   p.CoachStudies.String(),
		"CoachBio":       p.CoachBio.Text(),
		"DownloadLabel":  p.DownloadLabel.Or(defaultDownloadLabel),
		"DownloadURL":    p.downloadURL(rc.Media),
	})
}

// downloadURL sends CMS-hosted files through the site's download proxy so
// the browser saves them instead of opening them; other links pass through
// when they are safe.
func (p *ProgramDetail) downloadURL(r *media.Resolver) string {
	raw := strings.TrimSpace(p.DownloadURL.String())
	if raw == "" {
		if len(p.DownloadFile.Raw()) == 0 {
			return ""
		}
		return media.ProxyDownloadURL(p.DownloadFile.Raw())
	}
	origin := media.DefaultOrigin
	if r != nil {
		origin = r.Origin
	}
	if strings.Contains(raw, media.FilePath) && (strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, origin)) {
		return media.ProxyDownloadURL(raw)
	}
	return linkURL(raw)
}
