// Package postgres implements the PostgreSQL persistence layer for the
// rewards hub.
package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE USERS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create users table
-- Version: 001

CREATE TABLE IF NOT EXISTS users (
    id BIGINT PRIMARY KEY,
    display_name VARCHAR(100) NOT NULL DEFAULT '',
    role VARCHAR(20) NOT NULL,
    active BOOLEAN NOT NULL DEFAULT TRUE,

    -- Student counters
    total_tests INTEGER NOT NULL DEFAULT 0,
    correct_answers INTEGER NOT NULL DEFAULT 0,
    total_questions INTEGER NOT NULL DEFAULT 0,

    -- Teacher counters
    tests_created INTEGER NOT NULL DEFAULT 0,
    student_attempts INTEGER NOT NULL DEFAULT 0,

    -- Reward wallet
    coins INTEGER NOT NULL DEFAULT 0,
    total_xp INTEGER NOT NULL DEFAULT 0,
    level INTEGER NOT NULL DEFAULT 1,
    badges JSONB NOT NULL DEFAULT '[]'::jsonb,

    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    -- Constraints for data integrity
    CONSTRAINT valid_role CHECK (role IN ('student', 'teacher')),
    CONSTRAINT valid_counters CHECK (
        total_tests >= 0 AND correct_answers >= 0 AND total_questions >= 0
        AND tests_created >= 0 AND student_attempts >= 0
    ),
    CONSTRAINT valid_wallet CHECK (coins >= 0 AND total_xp >= 0 AND level >= 1)
);

-- Indexes for ranking queries
CREATE INDEX IF NOT EXISTS idx_users_role ON users(role);
CREATE INDEX IF NOT EXISTS idx_users_active_role ON users(role, id) WHERE active;
`

const migration001Down = `
DROP TABLE IF EXISTS users;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE RANKING SNAPSHOTS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create ranking snapshot tables
-- Version: 002

CREATE TABLE IF NOT EXISTS ranking_snapshots (
    id UUID PRIMARY KEY,
    category VARCHAR(20) NOT NULL,
    month INTEGER NOT NULL,
    year INTEGER NOT NULL,
    total_users INTEGER NOT NULL DEFAULT 0,
    processed BOOLEAN NOT NULL DEFAULT FALSE,
    processed_at TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_category CHECK (category IN ('students', 'teachers')),
    CONSTRAINT valid_month CHECK (month BETWEEN 1 AND 12),

    -- One snapshot per period per category: init is idempotent
    CONSTRAINT uq_snapshot_period UNIQUE (category, month, year)
);

CREATE TABLE IF NOT EXISTS ranking_entries (
    snapshot_id UUID NOT NULL REFERENCES ranking_snapshots(id) ON DELETE CASCADE,
    user_id BIGINT NOT NULL,
    display_name VARCHAR(100) NOT NULL DEFAULT '',
    score INTEGER NOT NULL,
    rank INTEGER NOT NULL,

    CONSTRAINT valid_rank CHECK (rank >= 1),
    PRIMARY KEY (snapshot_id, user_id),

    -- Ranks are dense 1..N within a snapshot
    CONSTRAINT uq_entry_rank UNIQUE (snapshot_id, rank)
);

CREATE INDEX IF NOT EXISTS idx_ranking_entries_rank ON ranking_entries(snapshot_id, rank);
`

const migration002Down = `
DROP TABLE IF EXISTS ranking_entries;
DROP TABLE IF EXISTS ranking_snapshots;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE REWARD JOBS AND RECORDS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create reward job and ledger tables
-- Version: 003

CREATE TABLE IF NOT EXISTS reward_jobs (
    id UUID PRIMARY KEY,
    category VARCHAR(20) NOT NULL,
    month INTEGER NOT NULL,
    year INTEGER NOT NULL,
    snapshot_id UUID NOT NULL REFERENCES ranking_snapshots(id),

    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    batch_size INTEGER NOT NULL,
    current_batch INTEGER NOT NULL DEFAULT 0,
    total_batches INTEGER NOT NULL DEFAULT 0,

    processed_users INTEGER NOT NULL DEFAULT 0,
    failed_users INTEGER NOT NULL DEFAULT 0,
    tier_stats JSONB NOT NULL DEFAULT '{}'::jsonb,

    retry_count INTEGER NOT NULL DEFAULT 0,
    error_log JSONB NOT NULL DEFAULT '[]'::jsonb,
    last_error TEXT NOT NULL DEFAULT '',

    started_at TIMESTAMP WITH TIME ZONE,
    completed_at TIMESTAMP WITH TIME ZONE,
    last_processed_at TIMESTAMP WITH TIME ZONE,
    processing_duration_ms BIGINT NOT NULL DEFAULT 0,

    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_job_category CHECK (category IN ('students', 'teachers')),
    CONSTRAINT valid_job_month CHECK (month BETWEEN 1 AND 12),
    CONSTRAINT valid_job_status CHECK (status IN ('pending', 'processing', 'completed', 'failed')),
    CONSTRAINT valid_batch_size CHECK (batch_size >= 1),

    -- One job per period per category: init is idempotent
    CONSTRAINT uq_job_period UNIQUE (category, month, year)
);

CREATE INDEX IF NOT EXISTS idx_reward_jobs_status ON reward_jobs(status) WHERE status IN ('pending', 'processing');
CREATE INDEX IF NOT EXISTS idx_reward_jobs_updated ON reward_jobs(updated_at DESC);

CREATE TABLE IF NOT EXISTS reward_records (
    id UUID PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(id),
    category VARCHAR(20) NOT NULL,
    month INTEGER NOT NULL,
    year INTEGER NOT NULL,
    rank INTEGER NOT NULL,
    tier VARCHAR(20) NOT NULL,
    coins INTEGER NOT NULL DEFAULT 0,
    xp INTEGER NOT NULL DEFAULT 0,
    badge VARCHAR(50) NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_record_category CHECK (category IN ('students', 'teachers')),
    CONSTRAINT valid_record_month CHECK (month BETWEEN 1 AND 12),
    CONSTRAINT valid_record_rank CHECK (rank >= 1),
    CONSTRAINT valid_record_tier CHECK (tier IN ('CHAMPION', 'ELITE', 'ACHIEVER', 'PERFORMER', 'UNPLACED')),

    -- The idempotency key: one reward per user per period per category.
    -- A concurrent duplicate insert fails here and is treated as a no-op.
    CONSTRAINT uq_reward_once UNIQUE (user_id, month, year, category)
);

CREATE INDEX IF NOT EXISTS idx_reward_records_user ON reward_records(user_id, created_at DESC);
`

const migration003Down = `
DROP TABLE IF EXISTS reward_records;
DROP TABLE IF EXISTS reward_jobs;
`
