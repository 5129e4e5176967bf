package build

import (
	"os"
	"path/filepath"
	"text/template"

	"github.com/pkg/errors"
)

// Serving entry files written into the source tree before the s2i build. The
// handler wraps the model class behind the interface the serving backend
// expects; the entrypoint is the SageMaker-style process manager the
// dispatcher execs into by default.
const (
	handlerFileName    = "handler.py"
	entrypointFileName = "dockerd-entrypoint.py"
)

var handlerTemplate = template.Must(template.New(handlerFileName).Parse(
	`# Generated by superai-launcher; do not edit.
from superai.meta_ai.ai import BaseAI
from superai.meta_ai.ai_uri import model_from_path

model = model_from_path("{{.ModelIdentifier}}")
{{- if .LambdaMode}}
handler = model.lambda_handler(cache_size={{.LambdaCacheSize}})
{{- else}}
handler = model.sagemaker_handler()
{{- end}}
`))

var entrypointTemplate = template.Must(template.New(entrypointFileName).Parse(
	`# Generated by superai-launcher; do not edit.
import sys

from superai.meta_ai.serving import serve

if __name__ == "__main__":
    serve(sys.argv, worker_count={{.WorkerCount}})
`))

// entrypointParams feeds the entry file templates.
type entrypointParams struct {
	ModelIdentifier string
	LambdaMode      bool
	LambdaCacheSize int
	WorkerCount     int
}

// prepareEntrypoints writes the serving entry files the orchestrator needs
// into the source location. Kubernetes deployments need none; the seldon
// microservice imports the model class directly.
func prepareEntrypoints(location string, orchestrator Orchestrator, p entrypointParams) error {
	switch {
	case orchestrator.SageMakerMode():
		if err := renderTo(filepath.Join(location, handlerFileName), handlerTemplate, p); err != nil {
			return err
		}
		return renderTo(filepath.Join(location, entrypointFileName), entrypointTemplate, p)
	case orchestrator.LambdaMode():
		p.LambdaMode = true
		return renderTo(filepath.Join(location, handlerFileName), handlerTemplate, p)
	case orchestrator.K8sMode():
		return nil
	default:
		return errors.Errorf("no entrypoint strategy for orchestrator %s", orchestrator)
	}
}

func renderTo(path string, tmpl *template.Template, p entrypointParams) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	if err := tmpl.Execute(f, p); err != nil {
		f.Close()
		return errors.Wrapf(err, "rendering %s", path)
	}
	return f.Close()
}
