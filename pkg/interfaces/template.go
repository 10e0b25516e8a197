package interfaces

import "io"

// TemplateRenderer renders named page templates for the static generator.
type TemplateRenderer interface {
	Render(name string, data map[string]any, out ...io.Writer) (string, error)
	RenderString(templateContent string, data map[string]any, out ...io.Writer) (string, error)
}
