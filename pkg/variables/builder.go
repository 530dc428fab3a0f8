package variables

import "time"

// Builder assembles a WorkflowRequest fluently.
type Builder struct {
	req WorkflowRequest
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{req: WorkflowRequest{
		Variables:      map[string]any{},
		TypedVariables: map[string]TypedVariable{},
		ComplexData:    map[string]any{},
	}}
}

// AddVariable sets a simple variable.
func (b *Builder) AddVariable(key string, value any) *Builder {
	b.req.Variables[key] = value
	return b
}

// AddVariables sets every entry of vars as a simple variable.
func (b *Builder) AddVariables(vars map[string]any) *Builder {
	for k, v := range vars {
		b.req.Variables[k] = v
	}
	return b
}

// AddTypedVariable sets a tagged variable.
func (b *Builder) AddTypedVariable(key string, tv TypedVariable) *Builder {
	b.req.TypedVariables[key] = tv
	return b
}

// AddComplexData sets a nested object.
func (b *Builder) AddComplexData(key string, data any) *Builder {
	b.req.ComplexData[key] = data
	return b
}

func (b *Builder) AddString(key, value string) *Builder {
	return b.AddTypedVariable(key, String(value))
}

func (b *Builder) AddNumber(key string, value float64) *Builder {
	return b.AddTypedVariable(key, Number(value))
}

func (b *Builder) AddBoolean(key string, value bool) *Builder {
	return b.AddTypedVariable(key, Boolean(value))
}

func (b *Builder) AddDate(key string, value time.Time) *Builder {
	return b.AddTypedVariable(key, Date(value))
}

func (b *Builder) AddList(key string, items []any) *Builder {
	return b.AddTypedVariable(key, List(items))
}

func (b *Builder) AddObject(key string, value any) *Builder {
	return b.AddTypedVariable(key, Object(value))
}

// Build returns the request. The builder must not be reused afterwards.
func (b *Builder) Build() WorkflowRequest {
	return b.req
}
