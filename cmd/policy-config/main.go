package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/oarkflow/policy"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	switch cmd {
	case "convert":
		handleConvert()
	case "validate":
		handleValidate()
	case "stats":
		handleStats()
	default:
		fmt.Printf("Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("policy-config - Rule-set configuration tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  policy-config convert <input> <output>  - Convert between formats")
	fmt.Println("  policy-config validate <file>           - Validate a rule set")
	fmt.Println("  policy-config stats <file>              - Show rule-set statistics")
	fmt.Println()
	fmt.Println("Supported formats: .yaml, .yml, .json")
}

func handleConvert() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: policy-config convert <input> <output>")
		os.Exit(1)
	}

	cfg, err := loadConfig(os.Args[2])
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := saveConfig(cfg, os.Args[3]); err != nil {
		fmt.Printf("Error saving config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Converted %s -> %s\n", os.Args[2], os.Args[3])
}

func handleValidate() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: policy-config validate <file>")
		os.Exit(1)
	}

	cfg, err := loadConfig(os.Args[2])
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if _, err := cfg.BuildEngine(); err != nil {
		fmt.Printf("Invalid rule set: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("OK: %d rules\n", len(cfg.Rules))
}

func handleStats() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: policy-config stats <file>")
		os.Exit(1)
	}

	cfg, err := loadConfig(os.Args[2])
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	rules, err := cfg.Compile()
	if err != nil {
		fmt.Printf("Error compiling rules: %v\n", err)
		os.Exit(1)
	}

	perKey := make(map[string]int)
	fieldRestricted := 0
	unconditional := 0
	for _, r := range rules {
		perKey[r.Model+"."+string(r.Action)]++
		if r.Fields != nil {
			fieldRestricted++
		}
		if r.Allow == nil {
			unconditional++
		}
	}

	fmt.Printf("Rules: %d\n", len(rules))
	fmt.Printf("Field-restricted: %d\n", fieldRestricted)
	fmt.Printf("Without allow clause: %d\n", unconditional)
	fmt.Println("Per model.action:")
	keys := make([]string, 0, len(perKey))
	for k := range perKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %-30s %d\n", k, perKey[k])
	}
}

func loadConfig(path string) (*policy.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	loader := policy.NewConfigLoader()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return loader.LoadYAML(data)
	case ".json":
		return loader.LoadJSON(data)
	}
	return nil, fmt.Errorf("unsupported format: %s", path)
}

func saveConfig(cfg *policy.Config, path string) error {
	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = cfg.ToYAML()
	case ".json":
		data, err = cfg.ToJSON()
	default:
		return fmt.Errorf("unsupported format: %s", path)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
