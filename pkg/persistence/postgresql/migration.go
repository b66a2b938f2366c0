package postgresql

// migrations returns the schema migrations keyed by version.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS journeys (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				published_version INTEGER,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE TABLE IF NOT EXISTS journey_versions (
				id TEXT PRIMARY KEY,
				journey_id TEXT NOT NULL REFERENCES journeys(id),
				version INTEGER NOT NULL,
				status TEXT NOT NULL DEFAULT 'draft',
				graph JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				published_at TIMESTAMP WITH TIME ZONE,
				UNIQUE (journey_id, version)
			);

			CREATE UNIQUE INDEX IF NOT EXISTS journey_versions_one_published
				ON journey_versions (journey_id)
				WHERE status = 'published';

			CREATE TABLE IF NOT EXISTS journey_tasks (
				id TEXT PRIMARY KEY,
				journey_id TEXT NOT NULL,
				version INTEGER NOT NULL,
				node_id TEXT NOT NULL,
				subject_id TEXT NOT NULL,
				context JSONB NOT NULL DEFAULT '{}',
				due_at TIMESTAMP WITH TIME ZONE NOT NULL,
				status TEXT NOT NULL DEFAULT 'pending',
				claimed_at TIMESTAMP WITH TIME ZONE,
				last_error TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS journey_tasks_due
				ON journey_tasks (status, due_at);

			CREATE TABLE IF NOT EXISTS journey_completions (
				id TEXT PRIMARY KEY,
				journey_id TEXT NOT NULL,
				version INTEGER NOT NULL,
				subject_id TEXT NOT NULL,
				goal_node_id TEXT NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS journey_completions_subject
				ON journey_completions (journey_id, subject_id);
		`,
	}
}
