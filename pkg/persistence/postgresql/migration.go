package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Create workflows table
			CREATE TABLE workflows (
				id UUID PRIMARY KEY,
				name TEXT NOT NULL CHECK (length(name) > 0),
				owner_id VARCHAR(255) NOT NULL,
				version BIGINT NOT NULL DEFAULT 1,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflows_owner_updated ON workflows(owner_id, updated_at DESC, id);
		`,
		2: `
			-- Graph rows, owned by a workflow and removed with it
			CREATE TABLE workflow_nodes (
				workflow_id UUID NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				id VARCHAR(255) NOT NULL,
				seq BIGSERIAL NOT NULL,
				type VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				position_x DOUBLE PRECISION NOT NULL DEFAULT 0,
				position_y DOUBLE PRECISION NOT NULL DEFAULT 0,
				data JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (workflow_id, id)
			);

			CREATE INDEX idx_workflow_nodes_workflow_seq ON workflow_nodes(workflow_id, seq);

			-- Both endpoints must be nodes of the same workflow
			CREATE TABLE workflow_connections (
				workflow_id UUID NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				id VARCHAR(255) NOT NULL,
				seq BIGSERIAL NOT NULL,
				from_node_id VARCHAR(255) NOT NULL,
				to_node_id VARCHAR(255) NOT NULL,
				from_output VARCHAR(255) NOT NULL DEFAULT 'main',
				to_input VARCHAR(255) NOT NULL DEFAULT 'main',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (workflow_id, id),
				FOREIGN KEY (workflow_id, from_node_id) REFERENCES workflow_nodes(workflow_id, id) ON DELETE CASCADE,
				FOREIGN KEY (workflow_id, to_node_id) REFERENCES workflow_nodes(workflow_id, id) ON DELETE CASCADE
			);

			CREATE INDEX idx_workflow_connections_workflow_seq ON workflow_connections(workflow_id, seq);
			CREATE INDEX idx_workflow_connections_from ON workflow_connections(workflow_id, from_node_id);
			CREATE INDEX idx_workflow_connections_to ON workflow_connections(workflow_id, to_node_id);
		`,
	}
}
