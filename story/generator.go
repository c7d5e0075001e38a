package story

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"text/template"

	"github.com/yukimura/storypost/platform"
)

// Generator renders StoryDocuments from templates and configuration.
// Rendering is pure substitution: the same variables always produce
// the same document and therefore the same fingerprint, so re-running
// generation never causes a duplicate submission by itself.
type Generator struct {
	logger *slog.Logger
}

func NewGenerator(logger *slog.Logger) *Generator {
	return &Generator{logger: logger}
}

// Generate renders the named template with vars and returns both the
// parsed document and the sanitized markdown artifact text.
func (g *Generator) Generate(languageTag, templateName string, vars map[string]string) (Document, string, error) {
	body, ok := templates[templateName]
	if !ok {
		return Document{}, "", platform.Errorf(platform.KindTemplate, "story.generate",
			"unknown template %q", templateName)
	}

	tmpl, err := template.New(templateName).Option("missingkey=error").Parse(body)
	if err != nil {
		return Document{}, "", platform.E(platform.KindTemplate, "story.generate", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		// missingkey=error lands here when the template references a
		// variable the configuration does not define.
		return Document{}, "", platform.E(platform.KindTemplate, "story.generate", err)
	}

	md := Sanitize(buf.String())
	doc, err := Parse([]byte(md), languageTag)
	if err != nil {
		return Document{}, "", err
	}

	g.logger.Info("story generated",
		slog.String("language", languageTag),
		slog.String("template", templateName),
		slog.String("fingerprint", doc.Fingerprint()))
	return doc, md, nil
}

// ArtifactPath is where the generated markdown for a language lives.
func ArtifactPath(outputDir, languageTag string) string {
	return filepath.Join(outputDir, languageTag, "input.md")
}

// WriteArtifact persists the markdown for a language under outputDir.
func WriteArtifact(outputDir, languageTag, md string) (string, error) {
	path := ArtifactPath(outputDir, languageTag)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(md), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// ReadArtifact loads a previously generated artifact back into a
// Document. Parsing is deterministic, so the fingerprint matches the
// one reported at generation time.
func ReadArtifact(outputDir, languageTag string) (Document, error) {
	data, err := os.ReadFile(ArtifactPath(outputDir, languageTag))
	if err != nil {
		return Document{}, platform.E(platform.KindConfig, "story.read_artifact", err)
	}
	return Parse(data, languageTag)
}
