// package formatter renders a user profile for export (plain text, Markdown, JSON, CSV)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/melodymatch/internal/models"
	"github.com/desertthunder/melodymatch/internal/shared"
)

// Format names an export format.
type Format string

const (
	Text     Format = "text"
	Markdown Format = "markdown"
	JSON     Format = "json"
	CSV      Format = "csv"
)

// Formats lists every supported [Format].
var Formats = []Format{Text, Markdown, JSON, CSV}

// ParseFormat maps a flag value to a [Format].
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case Text, Markdown, JSON, CSV:
		return f, nil
	case "md":
		return Markdown, nil
	case "":
		return Text, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
	}
}

const barWidth = 20

// Export renders p in format f.
func Export(p *models.UserProfile, f Format) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: no profile", shared.ErrInvalidInput)
	}

	switch f {
	case Text:
		return ExportToText(p)
	case Markdown:
		return ExportToMarkdown(p, "")
	case JSON:
		return ExportToJSON(p)
	case CSV:
		return ExportToCSV(p)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, f)
	}
}

// ExportToText converts a profile to plain text
func ExportToText(p *models.UserProfile) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("User: %s\n", p.DisplayName()))
	buf.WriteString(fmt.Sprintf("ID: %d\n", p.User.ID))
	if p.User.Email != "" {
		buf.WriteString(fmt.Sprintf("Email: %s\n", p.User.Email))
	}

	if pr := p.Profile; pr != nil {
		if pr.Bio != "" {
			buf.WriteString(fmt.Sprintf("Bio: %s\n", pr.Bio))
		}
		if pr.Age > 0 {
			buf.WriteString(fmt.Sprintf("Age: %d\n", pr.Age))
		}
		if pr.Location != "" {
			buf.WriteString(fmt.Sprintf("Location: %s\n", pr.Location))
		}
		if len(pr.Interests) > 0 {
			buf.WriteString(fmt.Sprintf("Interests: %s\n", strings.Join(pr.Interests, ", ")))
		}
	}

	buf.WriteString("\nMusic personality:\n")
	if !p.HasMusicData() {
		buf.WriteString("  not analysed yet\n")
		return buf.Bytes(), nil
	}
	for i, v := range p.MusicData.PersonalityVector {
		buf.WriteString(fmt.Sprintf("  %2d. [%s] %3d%%\n", i+1, bar(v, barWidth, "#", "-"), percent(v)))
	}
	if updated := lastUpdated(p.MusicData); updated != "" {
		buf.WriteString(fmt.Sprintf("Last updated: %s\n", updated))
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a profile to Markdown with an optional avatar image
func ExportToMarkdown(p *models.UserProfile, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", p.DisplayName()))

	if imageFilename != "" {
		buf.WriteString(fmt.Sprintf("![Avatar](%s)\n\n", imageFilename))
	}

	if p.User.Email != "" {
		buf.WriteString(fmt.Sprintf("**Email**: %s\n\n", p.User.Email))
	}

	if pr := p.Profile; pr != nil {
		buf.WriteString("## Profile\n\n")
		if pr.Bio != "" {
			buf.WriteString(fmt.Sprintf("> %s\n\n", pr.Bio))
		}
		if pr.Age > 0 {
			buf.WriteString(fmt.Sprintf("- **Age**: %d\n", pr.Age))
		}
		if pr.Location != "" {
			buf.WriteString(fmt.Sprintf("- **Location**: %s\n", pr.Location))
		}
		if len(pr.Interests) > 0 {
			buf.WriteString(fmt.Sprintf("- **Interests**: %s\n", strings.Join(pr.Interests, ", ")))
		}
		buf.WriteString("\n")
	}

	buf.WriteString("## Music personality\n\n")
	if !p.HasMusicData() {
		buf.WriteString("_Not analysed yet._\n")
		return buf.Bytes(), nil
	}

	buf.WriteString("| Trait | Score | |\n|---|---:|---|\n")
	for i, v := range p.MusicData.PersonalityVector {
		buf.WriteString(fmt.Sprintf("| %d | %d%% | `%s` |\n", i+1, percent(v), bar(v, barWidth, "█", "░")))
	}
	if updated := lastUpdated(p.MusicData); updated != "" {
		buf.WriteString(fmt.Sprintf("\n_Last updated %s_\n", updated))
	}

	return buf.Bytes(), nil
}

// ExportToJSON converts a profile to indented JSON, in the shape the backend serves it
func ExportToJSON(p *models.UserProfile) ([]byte, error) {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal profile: %w", err)
	}
	return append(data, '\n'), nil
}

// ExportToCSV converts the personality vector to CSV with columns: Trait, Value
func ExportToCSV(p *models.UserProfile) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"Trait", "Value"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	if p.HasMusicData() {
		for i, v := range p.MusicData.PersonalityVector {
			record := []string{strconv.Itoa(i + 1), strconv.FormatFloat(v, 'f', -1, 64)}
			if err := writer.Write(record); err != nil {
				return nil, fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory string
	Files     []string
	Avatar    string
}

// WriteMarkdownExport writes the profile as {dir}/README.md, downloading the profile image to {dir}/avatar.jpg when present.
//
// Directory name defaults to user_{id}. A failed image download is reported on stderr and skipped.
func WriteMarkdownExport(p *models.UserProfile, outputDir string) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = fmt.Sprintf("user_%d", p.User.ID)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{Directory: outputDir, Files: []string{}}

	var avatar string
	if p.User.ProfileImage != "" {
		imageData, err := DownloadImage(p.User.ProfileImage)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to download profile image: %v\n", err)
		} else {
			path := filepath.Join(outputDir, "avatar.jpg")
			if err := os.WriteFile(path, imageData, 0644); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to save profile image: %v\n", err)
			} else {
				avatar = "avatar.jpg"
				result.Avatar = path
				result.Files = append(result.Files, path)
			}
		}
	}

	mdData, err := ExportToMarkdown(p, avatar)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}
	result.Files = append(result.Files, mdFile)

	return result, nil
}

// WriteExport writes p in format f to path, defaulting to user_{id}.{ext}.
func WriteExport(p *models.UserProfile, f Format, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("user_%d.%s", p.User.ID, extension(f))
	}

	data, err := Export(p, f)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s file: %w", f, err)
	}
	return path, nil
}

func extension(f Format) string {
	switch f {
	case Markdown:
		return "md"
	case JSON:
		return "json"
	case CSV:
		return "csv"
	default:
		return "txt"
	}
}

func percent(v float64) int {
	return int(math.Round(clamp(v) * 100))
}

func bar(v float64, width int, full, empty string) string {
	filled := int(math.Round(clamp(v) * float64(width)))
	return strings.Repeat(full, filled) + strings.Repeat(empty, width-filled)
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func lastUpdated(m *models.MusicData) string {
	if t, ok := m.LastUpdatedTime(); ok {
		return t.Format("2 Jan 2006 15:04 MST")
	}
	return m.LastUpdated
}
