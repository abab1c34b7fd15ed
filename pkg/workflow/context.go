package workflow

// Context carries the trigger payload and each completed node's result
// across a single execution, passed to template/JMESPath resolution as a
// plain map so nodes never see more than the data other nodes chose to
// produce.
type Context struct {
	TriggerData map[string]any
	results     map[string]any
}

// NewContext constructs a Context seeded with triggerData (nil becomes an
// empty map).
func NewContext(triggerData map[string]any) *Context {
	if triggerData == nil {
		triggerData = map[string]any{}
	}
	return &Context{TriggerData: triggerData, results: make(map[string]any)}
}

// SetResult records nodeID's result for later nodes to reference.
func (c *Context) SetResult(nodeID string, result any) {
	c.results[nodeID] = result
}

// GetResult returns nodeID's recorded result, or nil if it hasn't run.
func (c *Context) GetResult(nodeID string) any {
	return c.results[nodeID]
}

// ToMap renders the context as the flat dict template/JMESPath resolution
// evaluates against: {"trigger": ..., "<node_id>": <node_id's result>,
// ...}.
func (c *Context) ToMap() map[string]any {
	out := make(map[string]any, len(c.results)+1)
	out["trigger"] = c.TriggerData
	for id, r := range c.results {
		out[id] = r
	}
	return out
}
