package rulestore

// Schema for custom rule configuration storage.
// Compatible with both SQLite and PostgreSQL.

const schemaRuleConfigs = `
CREATE TABLE IF NOT EXISTS rule_configs (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    expression TEXT NOT NULL,
    score_delta INTEGER NOT NULL DEFAULT 0,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rule_configs_enabled ON rule_configs(enabled);
`

// AllSchemas returns every schema statement in migration order.
func AllSchemas() []string {
	return []string{
		schemaRuleConfigs,
	}
}
