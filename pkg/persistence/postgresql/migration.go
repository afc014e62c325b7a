package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id VARCHAR(64) PRIMARY KEY,
				workspace_id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				module VARCHAR(50) NOT NULL,
				trigger_type VARCHAR(255) NOT NULL DEFAULT '',
				trigger_config JSONB NOT NULL DEFAULT '{}',
				status VARCHAR(50) NOT NULL CHECK (status IN ('draft', 'published')),
				version BIGINT NOT NULL DEFAULT 1,
				nodes JSONB NOT NULL DEFAULT '[]',
				edges JSONB NOT NULL DEFAULT '[]',
				viewport JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				published_at TIMESTAMP WITH TIME ZONE,
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_workflows_workspace ON workflows(workspace_id);
			CREATE INDEX idx_workflows_trigger ON workflows(workspace_id, trigger_type, status);
			CREATE INDEX idx_workflows_created_at ON workflows(created_at);
			CREATE INDEX idx_workflows_deleted_at ON workflows(deleted_at);
		`,
		2: `
			CREATE TABLE executions (
				id VARCHAR(64) PRIMARY KEY,
				workspace_id VARCHAR(255) NOT NULL,
				workflow_id VARCHAR(64) NOT NULL,
				mode VARCHAR(20) NOT NULL,
				status VARCHAR(50) NOT NULL,
				record JSONB NOT NULL,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_executions_workflow ON executions(workspace_id, workflow_id, started_at DESC);
		`,
	}
}
