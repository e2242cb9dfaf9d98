package llm

import (
	"sort"

	"google.golang.org/genai"
)

var geminiUnsupportedSchemaFields = []string{
	"$schema",
	"format",
	"exclusiveMinimum",
	"exclusiveMaximum",
	"minimum",
	"maximum",
	"minLength",
	"maxLength",
	"minItems",
	"maxItems",
	"uniqueItems",
	"pattern",
	"default",
	"examples",
	"const",
	"additionalProperties",
	"title",
}

// normalizeSchemaForGemini strips keywords Gemini rejects. The input is not modified.
func normalizeSchemaForGemini(schema map[string]interface{}) map[string]interface{} {
	if schema == nil {
		return nil
	}
	return normalizeGeminiSchema(deepCopyMap(schema))
}

func normalizeGeminiSchema(schema map[string]interface{}) map[string]interface{} {
	for _, field := range geminiUnsupportedSchemaFields {
		delete(schema, field)
	}
	if props, ok := schema["properties"].(map[string]interface{}); ok {
		for key, val := range props {
			if propSchema, ok := val.(map[string]interface{}); ok {
				props[key] = normalizeGeminiSchema(propSchema)
			}
		}
	}
	if items, ok := schema["items"].(map[string]interface{}); ok {
		schema["items"] = normalizeGeminiSchema(items)
	}
	for _, key := range []string{"anyOf", "oneOf", "allOf"} {
		if arr, ok := schema[key].([]interface{}); ok {
			for i, item := range arr {
				if itemSchema, ok := item.(map[string]interface{}); ok {
					arr[i] = normalizeGeminiSchema(itemSchema)
				}
			}
		}
	}
	return schema
}

func schemaToGenai(schema map[string]interface{}) *genai.Schema {
	if schema == nil {
		return &genai.Schema{Type: genai.TypeObject}
	}

	out := &genai.Schema{
		Type:        schemaTypeFromValue(schema),
		Description: stringField(schema, "description"),
		Required:    schemaRequired(schema),
	}
	if enum, ok := schema["enum"].([]interface{}); ok {
		for _, v := range enum {
			if s, ok := v.(string); ok {
				out.Enum = append(out.Enum, s)
			}
		}
	}
	if props, ok := schema["properties"].(map[string]interface{}); ok {
		out.Properties = make(map[string]*genai.Schema, len(props))
		names := make([]string, 0, len(props))
		for name, prop := range props {
			if propMap, ok := prop.(map[string]interface{}); ok {
				out.Properties[name] = schemaToGenai(propMap)
				names = append(names, name)
			}
		}
		sort.Strings(names)
		out.PropertyOrdering = names
	}
	if items, ok := schema["items"].(map[string]interface{}); ok {
		out.Items = schemaToGenai(items)
	}
	return out
}

func schemaTypeFromValue(schema map[string]interface{}) genai.Type {
	switch schema["type"] {
	case "string":
		return genai.TypeString
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	}
	if _, ok := schema["properties"]; ok {
		return genai.TypeObject
	}
	return genai.TypeString
}

func stringField(schema map[string]interface{}, key string) string {
	if v, ok := schema[key].(string); ok {
		return v
	}
	return ""
}
