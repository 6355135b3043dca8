// package formatter exports imported playlists to files (JSON, CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/linkport/internal/models"
	"github.com/desertthunder/linkport/internal/shared"
)

// Formats lists the accepted export format names.
var Formats = []string{"json", "csv", "markdown", "txt"}

// ParseFormat validates an export format name; "md" is accepted for markdown.
func ParseFormat(name string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(name)); f {
	case "", "json":
		return "json", nil
	case "md", "markdown":
		return "markdown", nil
	case "csv", "txt":
		return f, nil
	}
	return "", fmt.Errorf("%w: format %q (want one of %s)", shared.ErrInvalidFlag, name, strings.Join(Formats, ", "))
}

// ExportToCSV converts a playlist to CSV with columns: ID, Title, Artist, Album, Duration, Platform, URI
func ExportToCSV(p *models.ImportedPlaylist) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Title", "Artist", "Album", "Duration", "Platform", "URI"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range p.Tracks {
		record := []string{
			track.ID,
			track.Name,
			track.Artist,
			track.Album,
			strconv.Itoa(track.DurationMs),
			string(track.Platform),
			track.PlayableURI,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown renders a playlist as Markdown with an optional cover image
func ExportToMarkdown(p *models.ImportedPlaylist, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", p.Name)

	if imageFilename != "" {
		fmt.Fprintf(&buf, "![Cover](%s)\n\n", imageFilename)
	}

	fmt.Fprintf(&buf, "**Source**: %s\n", p.Source.Label())
	if p.SourceURL != "" {
		fmt.Fprintf(&buf, "**Link**: <%s>\n", p.SourceURL)
	}
	fmt.Fprintf(&buf, "**Imported**: %s\n", p.ImportedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&buf, "**Tracks**: %d\n\n", p.TrackCount)

	buf.WriteString("## Tracks\n\n")
	for i, track := range p.Tracks {
		albumPart := ""
		if track.Album != "" && track.Album != "Unknown" {
			albumPart = fmt.Sprintf(" (%s)", track.Album)
		}
		fmt.Fprintf(&buf, "%d. %s - %s%s [%s]\n", i+1, track.Artist, track.Name, albumPart, shared.FormatDuration(track.DurationMs))
	}

	return buf.Bytes(), nil
}

// ExportToText renders a playlist as plain text
func ExportToText(p *models.ImportedPlaylist) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", p.Name)
	fmt.Fprintf(&buf, "Source: %s\n", p.Source.Label())
	fmt.Fprintf(&buf, "Tracks: %d\n\n", p.TrackCount)

	for i, track := range p.Tracks {
		fmt.Fprintf(&buf, "%d. %s - %s\n", i+1, track.Artist, track.Name)
	}

	return buf.Bytes(), nil
}

// ExportToJSON renders the full playlist, tracks included, as indented JSON
func ExportToJSON(p *models.ImportedPlaylist) ([]byte, error) {
	return shared.MarshalJSON(p, true)
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
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

// Options controls where and how [Write] places files.
type Options struct {
	Format    string
	OutputDir string
	// Cover downloads the playlist image next to Markdown exports.
	Cover bool
}

// Write exports p in opts.Format below opts.OutputDir and returns the files created.
//
// Layout by format:
//   - json: {dir}/{id}.json
//   - csv: {dir}/{id}_tracks.csv and {dir}/{id}_metadata.json
//   - markdown: {dir}/{id}/README.md and optionally {dir}/{id}/cover.jpg
//   - txt: {dir}/{id}_tracks.txt
func Write(ctx context.Context, p *models.ImportedPlaylist, opts Options) ([]string, error) {
	format, err := ParseFormat(opts.Format)
	if err != nil {
		return nil, err
	}
	dir := opts.OutputDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	base := filepath.Join(dir, fileSafe(p.ID))

	switch format {
	case "csv":
		return writeCSV(p, base)
	case "markdown":
		return writeMarkdown(ctx, p, base, opts.Cover)
	case "txt":
		data, _ := ExportToText(p)
		return writeFiles(map[string][]byte{base + "_tracks.txt": data})
	default:
		data, err := ExportToJSON(p)
		if err != nil {
			return nil, fmt.Errorf("JSON marshal failed: %w", err)
		}
		return writeFiles(map[string][]byte{base + ".json": data})
	}
}

func writeCSV(p *models.ImportedPlaylist, base string) ([]string, error) {
	tracks, err := ExportToCSV(p)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	meta := *p
	meta.Tracks = nil
	metadata, err := shared.MarshalJSON(meta, true)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	return writeFiles(map[string][]byte{
		base + "_tracks.csv":    tracks,
		base + "_metadata.json": metadata,
	})
}

func writeMarkdown(ctx context.Context, p *models.ImportedPlaylist, dir string, cover bool) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	files := []string{}
	coverName := ""
	if cover && p.ImageURL != "" {
		if data, err := DownloadImage(ctx, p.ImageURL); err == nil {
			path := filepath.Join(dir, "cover.jpg")
			if err := os.WriteFile(path, data, 0644); err == nil {
				coverName = "cover.jpg"
				files = append(files, path)
			}
		}
	}

	md, err := ExportToMarkdown(p, coverName)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}
	readme := filepath.Join(dir, "README.md")
	if err := os.WriteFile(readme, md, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}
	return append(files, readme), nil
}

func writeFiles(files map[string][]byte) ([]string, error) {
	paths := make([]string, 0, len(files))
	for path, data := range files {
		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths, nil
}

// fileSafe replaces path separators in ids.
func fileSafe(id string) string {
	return strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(id)
}
