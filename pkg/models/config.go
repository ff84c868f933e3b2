package models

// RunConfig is the validated run configuration captured as an immutable
// snapshot on the Job at creation. It is also the payload the execution
// backend consumes. Tuning fields are optional; the spec content is the only
// required piece.
type RunConfig struct {
	SpecFileContent       string   `json:"spec_file_content"                 validate:"required"`
	APIURLOverride        *string  `json:"api_url_override,omitempty"`
	LLMEngine             *string  `json:"llm_engine,omitempty"`
	LLMEngineTemperature  *float64 `json:"llm_engine_temperature,omitempty"`
	UseCachedGraph        *bool    `json:"use_cached_graph,omitempty"`
	UseCachedQTables      *bool    `json:"use_cached_q_tables,omitempty"`
	RLAgentLearningRate   *float64 `json:"rl_agent_learning_rate,omitempty"`
	RLAgentDiscountFactor *float64 `json:"rl_agent_discount_factor,omitempty"`
	RLAgentMaxExploration *float64 `json:"rl_agent_max_exploration,omitempty"`
	TimeDurationSeconds   *float64 `json:"time_duration_seconds,omitempty"`
	MutationRate          *float64 `json:"mutation_rate,omitempty"`

	// UserID is an owner hint supplied by machine-credential submissions.
	// The resolved owner always comes from the API key; this is kept only as
	// part of the config snapshot.
	UserID *string `json:"user_id,omitempty"`
}
