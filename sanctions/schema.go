package sanctions

var DBSchemas = []string{`
CREATE TABLE IF NOT EXISTS sanctions (
	id BIGINT PRIMARY KEY,
	guild_id BIGINT NOT NULL,
	kind INT NOT NULL,
	subject_id BIGINT NOT NULL,
	issuer_id BIGINT NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP WITH TIME ZONE NOT NULL,
	expires_at TIMESTAMP WITH TIME ZONE,
	active BOOLEAN NOT NULL DEFAULT TRUE,

	role_id BIGINT NOT NULL DEFAULT 0,
	removed_roles BIGINT[]
);
`, `
CREATE INDEX IF NOT EXISTS sanctions_subject_idx ON sanctions (guild_id, subject_id, kind);
`, `
-- expiry sweeps scan by kind and deadline
CREATE INDEX IF NOT EXISTS sanctions_expires_idx ON sanctions (kind, expires_at) WHERE active;
`, `
-- at most one active mute/imprisonment per subject, kind values 1 and 5
CREATE UNIQUE INDEX IF NOT EXISTS sanctions_active_singleton_idx ON sanctions (guild_id, subject_id, kind) WHERE (active AND kind IN (1, 5));
`, `
-- at most one active role sanction per subject and role, kind values 2 and 3
CREATE UNIQUE INDEX IF NOT EXISTS sanctions_active_role_idx ON sanctions (guild_id, subject_id, kind, role_id) WHERE (active AND kind IN (2, 3));
`, `
CREATE TABLE IF NOT EXISTS modlog (
	id BIGINT PRIMARY KEY,
	guild_id BIGINT NOT NULL,
	action TEXT NOT NULL,
	subject_id BIGINT NOT NULL,
	issuer_id BIGINT NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	linked_sanction_id BIGINT,
	linked_message_id BIGINT,
	created_at TIMESTAMP WITH TIME ZONE NOT NULL
);
`, `
CREATE INDEX IF NOT EXISTS modlog_guild_idx ON modlog (guild_id, id);
`, `
-- performance scoring counts an issuer's actions over a window
CREATE INDEX IF NOT EXISTS modlog_issuer_idx ON modlog (guild_id, issuer_id, created_at);
`}
