// Package wizard provides the interactive mode of the dicomweb CLI: a short
// form collecting connection settings and the operation to run.
package wizard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// Operations lists the operations the wizard (and the CLI) can run.
var Operations = []string{
	"search-studies",
	"search-series",
	"search-instances",
	"retrieve-metadata",
	"store",
	"lookup-tag",
	"lookup-keyword",
}

var titleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("62")).
	MarginBottom(1)

// Run launches the interactive wizard. fromConfig optionally preloads
// settings from a YAML config file.
func Run(fromConfig string) (*Settings, error) {
	settings := &Settings{}
	if fromConfig != "" {
		loaded, err := LoadFromYAML(fromConfig)
		if err != nil {
			return nil, err
		}
		settings = loaded
	}

	fmt.Println(titleStyle.Render("dicomweb"))

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Server URL").
				Description("Base URL of the DICOMweb service, e.g. http://localhost:8042/dicom-web").
				Value(&settings.URL).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("server URL is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Username (optional)").
				Value(&settings.Username),
			huh.NewInput().
				Title("Password (optional)").
				EchoMode(huh.EchoModePassword).
				Value(&settings.Password),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Operation").
				Options(huh.NewOptions(Operations...)...).
				Value(&settings.Operation),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Study instance UID (optional)").
				Value(&settings.StudyUID),
			huh.NewInput().
				Title("Series instance UID (optional)").
				Value(&settings.SeriesUID),
			huh.NewInput().
				Title("SOP instance UID (optional)").
				Value(&settings.InstanceUID),
		),
	)

	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("wizard aborted: %w", err)
	}
	return settings, nil
}
