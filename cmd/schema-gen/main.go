// Schema Generator
//
// Generates JSON Schema files for the payloads accepted and returned by the
// trade service API.
//
// Usage:
//
//	go run ./cmd/schema-gen --out ./schemas
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/partstrade/trade-service/internal/aggregate"
	"github.com/partstrade/trade-service/internal/handlers"
	"github.com/partstrade/trade-service/internal/orders"
	"github.com/partstrade/trade-service/internal/pipeline"
	"github.com/partstrade/trade-service/internal/restock"
	"github.com/partstrade/trade-service/internal/types"
)

// SchemaGroup represents a group of related schemas
type SchemaGroup struct {
	Name   string
	Types  []any
	Output string
}

var groups = []SchemaGroup{
	{
		Name: "pricelists",
		Types: []any{
			types.ColumnMap{},
			types.ProviderPriceListConfig{},
			types.IngestionRun{},
			pipeline.Result{},
			types.PriceListStaleAlert{},
		},
		Output: "pricelists.json",
	},
	{
		Name: "customers",
		Types: []any{
			types.CustomerPriceListConfig{},
			types.CustomerPriceListSource{},
			types.Filter{},
			types.Substitution{},
			handlers.BuildPriceListRequest{},
			aggregate.BuildResult{},
		},
		Output: "customers.json",
	},
	{
		Name: "orders",
		Types: []any{
			types.CustomerOrderConfig{},
			types.OrderColumnMap{},
			orders.Result{},
		},
		Output: "orders.json",
	},
	{
		Name: "restock",
		Types: []any{
			restock.Request{},
			restock.Result{},
		},
		Output: "restock.json",
	},
	{
		Name: "errors",
		Types: []any{
			handlers.ErrorBody{},
		},
		Output: "errors.json",
	},
}

func main() {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "schema-gen",
		Short: "Generate JSON Schemas for the API payloads",
		RunE: func(cmd *cobra.Command, args []string) error {
			return generate(outputDir)
		},
	}
	cmd.Flags().StringVar(&outputDir, "out", "./schemas", "output directory")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func generate(outputDir string) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	for _, group := range groups {
		outputPath := filepath.Join(outputDir, group.Output)
		if err := writeSchema(generateGroupSchema(group), outputPath); err != nil {
			return fmt.Errorf("failed to write %s: %w", group.Output, err)
		}
		fmt.Printf("Generated %s\n", outputPath)
	}
	return nil
}

var decimalType = reflect.TypeOf(decimal.Decimal{})

// decimalSchema renders decimals as the numeric strings they marshal to.
func decimalSchema(t reflect.Type) *jsonschema.Schema {
	if t != decimalType {
		return nil
	}
	return &jsonschema.Schema{
		Type:    "string",
		Pattern: `^-?\d+(\.\d+)?$`,
	}
}

// generateGroupSchema creates a combined schema with all types in a group
func generateGroupSchema(group SchemaGroup) map[string]any {
	reflector := &jsonschema.Reflector{
		Mapper: decimalSchema,
	}

	definitions := make(map[string]any)
	for _, t := range group.Types {
		schema := reflector.Reflect(t)
		for name, def := range schema.Definitions {
			definitions[name] = def
		}
	}

	return map[string]any{
		"$schema":     "https://json-schema.org/draft/2020-12/schema",
		"$id":         fmt.Sprintf("https://partstrade.example/schemas/%s.json", group.Name),
		"title":       fmt.Sprintf("%s API Types", capitalize(group.Name)),
		"description": fmt.Sprintf("JSON Schema for %s API types generated from Go structs", group.Name),
		"$defs":       definitions,
	}
}

// writeSchema writes a schema to a JSON file
func writeSchema(schema map[string]any, path string) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func capitalize(s string) string {
	if len(s) == 0 {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
