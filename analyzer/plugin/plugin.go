// Package plugin registers the analyzer as a golangci-lint module plugin.
package plugin

import (
	"github.com/golangci/plugin-module-register/register"
	"golang.org/x/tools/go/analysis"

	"github.com/cschleiden/go-orchestrations/analyzer"
)

func init() {
	register.Plugin("orchestrations", New)
}

type Settings struct {
	CheckPrivateReturnValues bool `json:"checkprivatereturnvalues"`
}

type orchestrationsPlugin struct {
	settings Settings
}

func New(settings any) (register.LinterPlugin, error) {
	s, err := register.DecodeSettings[Settings](settings)
	if err != nil {
		return nil, err
	}

	return &orchestrationsPlugin{settings: s}, nil
}

func (p *orchestrationsPlugin) BuildAnalyzers() ([]*analysis.Analyzer, error) {
	a := analyzer.New()

	if p.settings.CheckPrivateReturnValues {
		if err := a.Flags.Set("checkprivatereturnvalues", "true"); err != nil {
			return nil, err
		}
	}

	return []*analysis.Analyzer{a}, nil
}

func (p *orchestrationsPlugin) GetLoadMode() string {
	return register.LoadModeTypesInfo
}
