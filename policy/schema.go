package policy

var DBSchemas = []string{`
CREATE TABLE IF NOT EXISTS guild_policy (
	guild_id BIGINT PRIMARY KEY,
	created_at TIMESTAMP WITH TIME ZONE NOT NULL,
	updated_at TIMESTAMP WITH TIME ZONE NOT NULL,

	admin_roles BIGINT[],
	head_mod_roles BIGINT[],
	senior_mod_roles BIGINT[],
	mod_roles BIGINT[],

	warn_days BIGINT NOT NULL,
	flag_days BIGINT NOT NULL,
	mute_minutes BIGINT NOT NULL,
	suspension_days BIGINT NOT NULL,

	max_flags INT NOT NULL,

	quota_moderator INT NOT NULL,
	quota_senior_mod INT NOT NULL,
	quota_head_mod INT NOT NULL,

	score_normalizer DOUBLE PRECISION NOT NULL,
	score_recent_weight DOUBLE PRECISION NOT NULL,
	score_history_weight DOUBLE PRECISION NOT NULL
);
`}
