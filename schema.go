package authsteps

// Schema contains sql commands to setup the database to work for the authsteps app.
const Schema = `
CREATE TABLE IF NOT EXISTS auth_schema (
	code VARCHAR(40) PRIMARY KEY,
	title VARCHAR(120) NOT NULL,
	methods JSONB NOT NULL DEFAULT '[]',
	checks JSONB NOT NULL DEFAULT '[]',
	admit_after JSONB NOT NULL DEFAULT '[]',
	tree JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMP WITH TIME ZONE DEFAULT current_timestamp,
	updated_at TIMESTAMP WITH TIME ZONE DEFAULT current_timestamp
);
CREATE TABLE IF NOT EXISTS auth_process (
	id VARCHAR(26) PRIMARY KEY,
	code VARCHAR(40) NOT NULL,
	mobile_uid VARCHAR(64) NOT NULL,
	user_identifier VARCHAR(128) NULL,
	status VARCHAR(20) NOT NULL,
	status_history JSONB NOT NULL DEFAULT '[]',
	steps JSONB NOT NULL DEFAULT '[]',
	conditions JSONB NOT NULL DEFAULT '[]',
	is_revoked BOOLEAN DEFAULT false,
	admitted_after_id VARCHAR(26) NULL,
	created_at TIMESTAMP WITH TIME ZONE DEFAULT current_timestamp,
	updated_at TIMESTAMP WITH TIME ZONE DEFAULT current_timestamp
);
CREATE INDEX IF NOT EXISTS idx_auth_process_mobile_uid ON auth_process(mobile_uid, status);
CREATE INDEX IF NOT EXISTS idx_auth_process_user ON auth_process(user_identifier, code);
CREATE TABLE IF NOT EXISTS refresh_token (
	id VARCHAR(26) PRIMARY KEY,
	value VARCHAR(64) UNIQUE NOT NULL,
	session_type VARCHAR(30) NOT NULL,
	mobile_uid VARCHAR(64) NULL,
	user_identifier VARCHAR(128) NULL,
	entity_id VARCHAR(64) NULL,
	expiration_time BIGINT NOT NULL,
	expiration_date TIMESTAMP WITH TIME ZONE NULL,
	entry_point JSONB NULL,
	entry_point_history JSONB NOT NULL DEFAULT '[]',
	is_deleted BOOLEAN DEFAULT false,
	is_compromised BOOLEAN DEFAULT false,
	expired BOOLEAN DEFAULT false,
	last_activity_date TIMESTAMP WITH TIME ZONE DEFAULT current_timestamp,
	created_at TIMESTAMP WITH TIME ZONE DEFAULT current_timestamp,
	updated_at TIMESTAMP WITH TIME ZONE DEFAULT current_timestamp
);
CREATE INDEX IF NOT EXISTS idx_refresh_token_mobile_uid ON refresh_token(mobile_uid, session_type);
CREATE INDEX IF NOT EXISTS idx_refresh_token_user ON refresh_token(user_identifier);
CREATE INDEX IF NOT EXISTS idx_refresh_token_expiration ON refresh_token(expiration_time) WHERE NOT expired;
`
