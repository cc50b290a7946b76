package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// CreateAttributionTables creates the referral code, attribution event and
// conversion tables. attribution_events carries no foreign keys on purpose:
// events arrive before server-side validation and must tolerate unknown codes.
func CreateAttributionTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_attribution_tables",
		Migrate: func(tx *gorm.DB) error {
			return tx.Exec(`
				CREATE TABLE IF NOT EXISTS referral_codes (
					id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
					code VARCHAR(50) NOT NULL UNIQUE,
					owner_id UUID,
					kind VARCHAR(20) NOT NULL,
					active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
					deleted_at TIMESTAMP WITH TIME ZONE
				);

				CREATE TABLE IF NOT EXISTS attribution_events (
					id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
					referral_code VARCHAR(50),
					action VARCHAR(50) NOT NULL,
					source VARCHAR(255),
					medium VARCHAR(255),
					campaign VARCHAR(255),
					raw_params TEXT,
					session_id VARCHAR(64),
					page_loads INTEGER DEFAULT 0,
					user_agent TEXT,
					ip VARCHAR(64),
					referer TEXT,
					observed_at TIMESTAMP WITH TIME ZONE NOT NULL,
					created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS conversions (
					id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
					referral_code VARCHAR(50) NOT NULL,
					customer_name VARCHAR(255) NOT NULL,
					customer_email VARCHAR(255) NOT NULL,
					customer_phone VARCHAR(50),
					service_type VARCHAR(255) NOT NULL,
					service_amount DECIMAL(20,2),
					conversion_date TIMESTAMP WITH TIME ZONE NOT NULL,
					status VARCHAR(20) NOT NULL DEFAULT 'pending',
					attributed_kind VARCHAR(20),
					attributed_owner_id UUID,
					attributed_name VARCHAR(255),
					created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
					deleted_at TIMESTAMP WITH TIME ZONE
				);

				CREATE INDEX IF NOT EXISTS idx_referral_codes_owner ON referral_codes(owner_id, kind);
				CREATE INDEX IF NOT EXISTS idx_attribution_events_code ON attribution_events(referral_code);
				CREATE INDEX IF NOT EXISTS idx_attribution_events_session ON attribution_events(session_id);
				CREATE INDEX IF NOT EXISTS idx_conversions_code ON conversions(referral_code);
				CREATE INDEX IF NOT EXISTS idx_conversions_owner ON conversions(attributed_owner_id);
			`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Exec(`
				DROP TABLE IF EXISTS conversions;
				DROP TABLE IF EXISTS attribution_events;
				DROP TABLE IF EXISTS referral_codes;
			`).Error
		},
	}
}
