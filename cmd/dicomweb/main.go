package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/suyashkumar/dicom"

	"github.com/mrsinham/dicomweb"
	"github.com/mrsinham/dicomweb/cmd/dicomweb/wizard"
)

// version is set at build time via -ldflags
var version = "dev"

func main() {
	urlFlag := flag.String("url", "", "Base URL of the DICOMweb service (required unless --config or --interactive)")
	configFile := flag.String("config", "", "Load connection settings from YAML file")
	saveConfig := flag.String("save-config", "", "Save connection settings to YAML file (after the operation)")
	username := flag.String("username", "", "Username for basic authentication")
	password := flag.String("password", "", "Password for basic authentication")
	caBundle := flag.String("ca-bundle", "", "Path to CA bundle file in PEM format (https only)")
	timeout := flag.Duration("timeout", 30*time.Second, "HTTP request timeout")

	op := flag.String("op", "", fmt.Sprintf("Operation to run: %s", strings.Join(wizard.Operations, ", ")))
	study := flag.String("study", "", "Study instance UID")
	series := flag.String("series", "", "Series instance UID")
	instance := flag.String("instance", "", "SOP instance UID")
	limit := flag.Int("limit", -1, "Maximum number of search results (-1 = server default)")
	offset := flag.Int("offset", -1, "Number of search results to skip (-1 = none)")
	fuzzy := flag.Bool("fuzzymatching", false, "Ask the server for fuzzy semantic matching")
	fields := flag.String("fields", "", "Comma-separated attributes to include in search results")
	keyword := flag.String("keyword", "", "Attribute keyword or 8-digit hex tag (for lookup operations)")

	filters := map[string]string{}
	flag.Func("filter", "Search filter: 'Keyword=Value' or 'ggggeeee=Value' (repeatable)", func(s string) error {
		key, value, ok := strings.Cut(s, "=")
		if !ok {
			return fmt.Errorf("filter %q must have the form Key=Value", s)
		}
		filters[key] = value
		return nil
	})

	var files []string
	flag.Func("file", "DICOM file to store (repeatable, for --op store)", func(s string) error {
		files = append(files, s)
		return nil
	})

	interactive := flag.Bool("interactive", false, "Launch interactive wizard")
	flag.BoolVar(interactive, "i", false, "Launch interactive wizard (shortcut)")
	showVersion := flag.Bool("version", false, "Show version")

	flag.Parse()

	if *showVersion {
		fmt.Printf("dicomweb %s\n", version)
		os.Exit(0)
	}

	var settings *wizard.Settings
	var err error
	switch {
	case *interactive:
		settings, err = wizard.Run(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case *configFile != "":
		settings, err = wizard.LoadFromYAML(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	default:
		settings = &wizard.Settings{}
	}

	// Flags override config/wizard values when set.
	if *urlFlag != "" {
		settings.URL = *urlFlag
	}
	if *username != "" {
		settings.Username = *username
	}
	if *password != "" {
		settings.Password = *password
	}
	if *caBundle != "" {
		settings.CABundle = *caBundle
	}
	if settings.TimeoutSeconds == 0 {
		settings.TimeoutSeconds = int(timeout.Seconds())
	}
	if *op != "" {
		settings.Operation = *op
	}
	if *study != "" {
		settings.StudyUID = *study
	}
	if *series != "" {
		settings.SeriesUID = *series
	}
	if *instance != "" {
		settings.InstanceUID = *instance
	}
	for k, v := range filters {
		if settings.Filters == nil {
			settings.Filters = map[string]string{}
		}
		settings.Filters[k] = v
	}

	if settings.URL == "" && !isLookup(settings.Operation) {
		fmt.Fprintf(os.Stderr, "Error: --url is required\n")
		printUsage()
		os.Exit(1)
	}
	if settings.Operation == "" {
		fmt.Fprintf(os.Stderr, "Error: --op is required\n")
		printUsage()
		os.Exit(1)
	}

	opts := dicomweb.SearchOptions{Filters: settings.Filters}
	if *limit >= 0 {
		opts.Limit = limit
	}
	if *offset >= 0 {
		opts.Offset = offset
	}
	if *fuzzy {
		opts.FuzzyMatching = fuzzy
	}
	if *fields != "" {
		for _, f := range strings.Split(*fields, ",") {
			opts.Fields = append(opts.Fields, strings.TrimSpace(f))
		}
	}

	if err := run(settings, opts, *keyword, files); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *saveConfig != "" {
		if err := wizard.SaveToYAML(settings, *saveConfig); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not save config: %v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "Configuration saved to %s\n", *saveConfig)
		}
	}
}

func isLookup(op string) bool {
	return op == "lookup-tag" || op == "lookup-keyword"
}

// run executes the selected operation and prints its result to stdout.
func run(settings *wizard.Settings, opts dicomweb.SearchOptions, keyword string, files []string) error {
	ctx := context.Background()

	// Dictionary lookups need no client.
	switch settings.Operation {
	case "lookup-tag":
		tagStr, err := dicomweb.LookupTag(keyword)
		if err != nil {
			return err
		}
		fmt.Println(tagStr)
		return nil
	case "lookup-keyword":
		kw, err := dicomweb.LookupKeyword(keyword)
		if err != nil {
			return err
		}
		fmt.Println(kw)
		return nil
	}

	client, err := dicomweb.NewClient(settings.ClientConfig())
	if err != nil {
		return err
	}

	switch settings.Operation {
	case "search-studies":
		results, err := client.SearchStudies(ctx, opts)
		if err != nil {
			return err
		}
		return printJSON(results)
	case "search-series":
		results, err := client.SearchSeries(ctx, settings.StudyUID, opts)
		if err != nil {
			return err
		}
		return printJSON(results)
	case "search-instances":
		results, err := client.SearchInstances(ctx, settings.StudyUID, settings.SeriesUID, opts)
		if err != nil {
			return err
		}
		return printJSON(results)
	case "retrieve-metadata":
		return retrieveMetadata(ctx, client, settings)
	case "store":
		return storeFiles(ctx, client, settings.StudyUID, files)
	default:
		return fmt.Errorf("unknown operation %q, valid operations: %s", settings.Operation, strings.Join(wizard.Operations, ", "))
	}
}

// retrieveMetadata fetches metadata at the deepest level the given UIDs
// address.
func retrieveMetadata(ctx context.Context, client *dicomweb.Client, settings *wizard.Settings) error {
	switch {
	case settings.InstanceUID != "":
		metadata, err := client.RetrieveInstanceMetadata(ctx, settings.StudyUID, settings.SeriesUID, settings.InstanceUID)
		if err != nil {
			return err
		}
		return printJSON(metadata)
	case settings.SeriesUID != "":
		metadata, err := client.RetrieveSeriesMetadata(ctx, settings.StudyUID, settings.SeriesUID)
		if err != nil {
			return err
		}
		return printJSON(metadata)
	case settings.StudyUID != "":
		metadata, err := client.RetrieveStudyMetadata(ctx, settings.StudyUID)
		if err != nil {
			return err
		}
		return printJSON(metadata)
	default:
		return fmt.Errorf("--study is required for retrieve-metadata")
	}
}

// storeFiles parses local DICOM files and stores them on the server.
func storeFiles(ctx context.Context, client *dicomweb.Client, studyUID string, files []string) error {
	if len(files) == 0 {
		return fmt.Errorf("--file is required for store")
	}
	datasets := make([]dicom.Dataset, 0, len(files))
	for _, path := range files {
		ds, err := dicom.ParseFile(path, nil)
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		datasets = append(datasets, ds)
	}
	if err := client.StoreInstances(ctx, datasets, studyUID); err != nil {
		return err
	}
	fmt.Printf("Stored %d instance(s)\n", len(datasets))
	return nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "\nUsage:")
	fmt.Fprintln(os.Stderr, "  dicomweb --url <URL> --op <OPERATION> [options]")
	fmt.Fprintln(os.Stderr, "  dicomweb --interactive")
	fmt.Fprintln(os.Stderr, "\nOptions:")
	flag.PrintDefaults()
}
