package cli

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/example/openapi-extract/internal/generator"
	"github.com/example/openapi-extract/internal/parser"
)

// Flag defaults, shared with the config-file merge.
const (
	defaultGeneralInfo = "main.go"
	defaultDirs        = "."
	defaultOutput      = "./docs"
	defaultOutputTypes = "json,yaml"
)

// InitConfig holds the settings for one extraction run.
type InitConfig struct {
	GeneralInfo    string   `yaml:"generalInfo" validate:"required"`
	Dirs           []string `yaml:"dirs" validate:"required,min=1,dive,required"`
	ExcludeDirs    []string `yaml:"excludeDirs"`
	OutputDir      string   `yaml:"output" validate:"required"`
	OutputTypes    []string `yaml:"outputTypes" validate:"required,min=1,dive,oneof=json yaml yml"`
	OpenAPIVersion string   `yaml:"openapiVersion"`
}

func newInitCommand() *cobra.Command {
	var (
		generalInfo string
		dirs        string
		excludeDirs string
		output      string
		outputTypes string
		oasVersion  string
		configPath  string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Parse annotations and generate the OpenAPI document",
		RunE: func(_ *cobra.Command, _ []string) error {
			config := &InitConfig{
				GeneralInfo:    generalInfo,
				Dirs:           splitList(dirs),
				ExcludeDirs:    splitList(excludeDirs),
				OutputDir:      output,
				OutputTypes:    splitList(outputTypes),
				OpenAPIVersion: oasVersion,
			}
			if err := loadConfigFile(config, configPath); err != nil {
				return err
			}
			return Run(config)
		},
	}

	cmd.Flags().StringVarP(&generalInfo, "general-info", "g", defaultGeneralInfo, "Entry file holding the general API annotations")
	cmd.Flags().StringVarP(&dirs, "dir", "d", defaultDirs, "Comma-separated directories to scan")
	cmd.Flags().StringVar(&excludeDirs, "exclude-dir", "", "Comma-separated directories to skip")
	cmd.Flags().StringVarP(&output, "output", "o", defaultOutput, "Directory for the generated files")
	cmd.Flags().StringVar(&outputTypes, "ot", defaultOutputTypes, "Comma-separated output types (json, yaml)")
	cmd.Flags().StringVar(&oasVersion, "oas", generator.DefaultOpenAPIVersion, "OpenAPI version to emit")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML config file")

	return cmd
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadConfigFile merges a YAML config file into the config. File values
// apply only where the corresponding flag was left at its default.
func loadConfigFile(config *InitConfig, path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var fileCfg InitConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	if config.GeneralInfo == defaultGeneralInfo && fileCfg.GeneralInfo != "" {
		config.GeneralInfo = fileCfg.GeneralInfo
	}
	if strings.Join(config.Dirs, ",") == defaultDirs && len(fileCfg.Dirs) > 0 {
		config.Dirs = fileCfg.Dirs
	}
	if len(config.ExcludeDirs) == 0 {
		config.ExcludeDirs = fileCfg.ExcludeDirs
	}
	if config.OutputDir == defaultOutput && fileCfg.OutputDir != "" {
		config.OutputDir = fileCfg.OutputDir
	}
	if strings.Join(config.OutputTypes, ",") == defaultOutputTypes && len(fileCfg.OutputTypes) > 0 {
		config.OutputTypes = fileCfg.OutputTypes
	}
	if config.OpenAPIVersion == generator.DefaultOpenAPIVersion && fileCfg.OpenAPIVersion != "" {
		config.OpenAPIVersion = fileCfg.OpenAPIVersion
	}
	return nil
}

// Run executes one extraction: validate the config, parse the entry file
// and the source directories, assemble the document, and write the outputs.
func Run(config *InitConfig) error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := slog.Default()
	p := parser.New(logger)

	entryFile, err := resolveEntryFile(config.GeneralInfo, config.Dirs)
	if err != nil {
		return err
	}
	logger.Debug("using entry file", "path", entryFile)

	info, err := p.ParseDocumentInfo(entryFile)
	if err != nil {
		return err
	}

	operations, schemas, err := p.ParseOperations(config.Dirs, config.ExcludeDirs, filepath.Dir(entryFile))
	if err != nil {
		return err
	}

	gen := generator.New(info, operations, schemas, config.OpenAPIVersion, logger)
	return gen.Generate(config.OutputDir, config.OutputTypes)
}

// resolveEntryFile returns the entry file path as given when it exists,
// otherwise searches the parse directories for a file with that base name.
func resolveEntryFile(generalInfo string, dirs []string) (string, error) {
	if info, err := os.Stat(generalInfo); err == nil && !info.IsDir() {
		return generalInfo, nil
	}

	base := filepath.Base(generalInfo)
	for _, dir := range dirs {
		var found string
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && d.Name() == base {
				found = path
				return fs.SkipAll
			}
			return nil
		})
		if err == nil && found != "" {
			return found, nil
		}
	}
	return "", fmt.Errorf("entry file %s not found in %s", generalInfo, strings.Join(dirs, ", "))
}
