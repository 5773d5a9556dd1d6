package db

// SchemaSQL contains the database schema initialization SQL.
const SchemaSQL = `
    -- ==========================================================================
    -- PROJECT TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS project SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS full_name ON project TYPE string;
    DEFINE FIELD IF NOT EXISTS url ON project TYPE string;
    DEFINE FIELD IF NOT EXISTS stars ON project TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS language ON project TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS description ON project TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS topics ON project TYPE array<string> DEFAULT [];
    DEFINE FIELD IF NOT EXISTS last_commit_date ON project TYPE option<datetime>;
    DEFINE FIELD IF NOT EXISTS fetched_at ON project TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS project_full_name ON project FIELDS full_name UNIQUE;
    DEFINE INDEX IF NOT EXISTS project_stars ON project FIELDS stars;

    -- ==========================================================================
    -- SCAN_UNIT TABLE (per-project batch status, one row per run configuration)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS scan_unit SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS project ON scan_unit TYPE string;
    DEFINE FIELD IF NOT EXISTS config ON scan_unit TYPE string;
    DEFINE FIELD IF NOT EXISTS stage ON scan_unit TYPE string;
    DEFINE FIELD IF NOT EXISTS status ON scan_unit TYPE string
        ASSERT $value IN ["created", "skipped", "error"];
    DEFINE FIELD IF NOT EXISTS error ON scan_unit TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS elapsed_ms ON scan_unit TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS updated_at ON scan_unit TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS scan_unit_key ON scan_unit FIELDS project, config UNIQUE;
`
