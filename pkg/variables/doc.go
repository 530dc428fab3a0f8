// Package variables converts loosely typed JSON variable maps into engine variables.
//
// Callers written in other languages send three groups of variables in a WorkflowRequest:
// plain values, values tagged as {"type": "...", "value": ...} and complex nested objects.
// ProcessVariables merges them into a single domain.Variables map. Normalize goes the other
// way and produces a cross-language friendly form (ISO-8601 UTC dates, float64 numbers,
// plain maps and slices).
package variables
