package ledger

import (
	"testing"

	"github.com/edupath/referral-backend/internal/attribution"
	"github.com/edupath/referral-backend/internal/models"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Ambassador{},
		&models.CampusGuide{},
		&models.ReferralCode{},
		&models.Conversion{},
	))
	return db
}

func amount(v float64) *float64 {
	return &v
}

func validInput() CreateInput {
	return CreateInput{
		ReferralCode:   "SOMECODE0001",
		CustomerName:   "Ama Serwaa",
		CustomerEmail:  "ama@example.com",
		ServiceType:    "visa-counselling",
		ServiceAmount:  amount(150),
		ConversionDate: "2025-06-15",
	}
}

func TestCreateDefaultsToPending(t *testing.T) {
	db := setupTestDB(t)
	l := NewLedger(db, nil)

	conversion, err := l.Create(validInput())
	require.NoError(t, err)

	assert.Equal(t, models.ConversionPending, conversion.Status)
	assert.Nil(t, conversion.AttributedOwnerID)
}

func TestCreateValidation(t *testing.T) {
	db := setupTestDB(t)
	l := NewLedger(db, nil)

	missingCode := validInput()
	missingCode.ReferralCode = ""
	_, err := l.Create(missingCode)
	assert.Error(t, err)

	missingName := validInput()
	missingName.CustomerName = ""
	_, err = l.Create(missingName)
	assert.Error(t, err)

	negative := validInput()
	negative.ServiceAmount = amount(-10)
	_, err = l.Create(negative)
	assert.Error(t, err)

	badDate := validInput()
	badDate.ConversionDate = "15/06/2025"
	_, err = l.Create(badDate)
	assert.Error(t, err)

	badStatus := validInput()
	badStatus.Status = "paid"
	_, err = l.Create(badStatus)
	assert.Error(t, err)
}

func TestCreateStampsAttribution(t *testing.T) {
	db := setupTestDB(t)

	amb := models.Ambassador{Name: "Jane Doe", Email: "jane@example.com", ReferralCode: "AMBCODE00001", Active: true}
	require.NoError(t, db.Create(&amb).Error)
	require.NoError(t, db.Create(&models.ReferralCode{
		Code:    "AMBCODE00001",
		OwnerID: &amb.ID,
		Kind:    models.CodeKindAmbassador,
		Active:  true,
	}).Error)

	l := NewLedger(db, attribution.NewReconciler(db))

	input := validInput()
	input.ReferralCode = "AMBCODE00001"
	conversion, err := l.Create(input)
	require.NoError(t, err)

	require.NotNil(t, conversion.AttributedOwnerID)
	assert.Equal(t, amb.ID, *conversion.AttributedOwnerID)
	assert.Equal(t, "Jane Doe", conversion.AttributedName)
	require.NotNil(t, conversion.AttributedKind)
	assert.Equal(t, models.CodeKindAmbassador, *conversion.AttributedKind)
}

func TestCreateWithUnknownCodeStaysUnattributed(t *testing.T) {
	db := setupTestDB(t)
	l := NewLedger(db, attribution.NewReconciler(db))

	conversion, err := l.Create(validInput())
	require.NoError(t, err)
	assert.Nil(t, conversion.AttributedOwnerID)
}

func TestStatusTransitions(t *testing.T) {
	db := setupTestDB(t)
	l := NewLedger(db, nil)

	conversion, err := l.Create(validInput())
	require.NoError(t, err)

	confirmed := models.ConversionConfirmed
	cancelled := models.ConversionCancelled

	// pending -> confirmed
	updated, err := l.Update(conversion.ID, UpdateInput{Status: &confirmed})
	require.NoError(t, err)
	assert.Equal(t, models.ConversionConfirmed, updated.Status)

	// confirmed -> cancelled (reversal)
	updated, err = l.Update(conversion.ID, UpdateInput{Status: &cancelled})
	require.NoError(t, err)
	assert.Equal(t, models.ConversionCancelled, updated.Status)

	// cancelled is terminal
	_, err = l.Update(conversion.ID, UpdateInput{Status: &confirmed})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	pending := models.ConversionPending
	_, err = l.Update(conversion.ID, UpdateInput{Status: &pending})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestPendingToCancelled(t *testing.T) {
	db := setupTestDB(t)
	l := NewLedger(db, nil)

	conversion, err := l.Create(validInput())
	require.NoError(t, err)

	cancelled := models.ConversionCancelled
	updated, err := l.Update(conversion.ID, UpdateInput{Status: &cancelled})
	require.NoError(t, err)
	assert.Equal(t, models.ConversionCancelled, updated.Status)
}

func TestUpdateFields(t *testing.T) {
	db := setupTestDB(t)
	l := NewLedger(db, nil)

	conversion, err := l.Create(validInput())
	require.NoError(t, err)

	newName := "Ama S. Mensah"
	newAmount := 250.0
	updated, err := l.Update(conversion.ID, UpdateInput{
		CustomerName:  &newName,
		ServiceAmount: &newAmount,
	})
	require.NoError(t, err)
	assert.Equal(t, "Ama S. Mensah", updated.CustomerName)
	assert.Equal(t, 250.0, *updated.ServiceAmount)
}

func TestUpdateMissingConversion(t *testing.T) {
	db := setupTestDB(t)
	l := NewLedger(db, nil)

	_, err := l.Update(uuid.New(), UpdateInput{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteIsHardAndIrreversible(t *testing.T) {
	db := setupTestDB(t)
	l := NewLedger(db, nil)

	conversion, err := l.Create(validInput())
	require.NoError(t, err)

	require.NoError(t, l.Delete(conversion.ID))

	_, err = l.Get(conversion.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, l.Delete(conversion.ID), ErrNotFound)
}

func TestAggregateCountsOnlyConfirmedRevenue(t *testing.T) {
	db := setupTestDB(t)
	l := NewLedger(db, nil)

	first := validInput()
	first.ServiceAmount = amount(100)
	first.Status = models.ConversionConfirmed
	_, err := l.Create(first)
	require.NoError(t, err)

	second := validInput()
	second.ServiceAmount = amount(200)
	second.Status = models.ConversionConfirmed
	_, err = l.Create(second)
	require.NoError(t, err)

	third := validInput()
	third.ServiceAmount = amount(50)
	third.Status = models.ConversionCancelled
	_, err = l.Create(third)
	require.NoError(t, err)

	summary, err := l.Aggregate(Filter{})
	require.NoError(t, err)

	assert.Equal(t, int64(3), summary.Count)
	assert.Equal(t, int64(2), summary.ConfirmedCount)
	assert.Equal(t, 300.0, summary.ConfirmedRevenueSum)
}

func TestAggregateIgnoresNullAmounts(t *testing.T) {
	db := setupTestDB(t)
	l := NewLedger(db, nil)

	withAmount := validInput()
	withAmount.Status = models.ConversionConfirmed
	_, err := l.Create(withAmount)
	require.NoError(t, err)

	noAmount := validInput()
	noAmount.ServiceAmount = nil
	noAmount.Status = models.ConversionConfirmed
	_, err = l.Create(noAmount)
	require.NoError(t, err)

	summary, err := l.Aggregate(Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.ConfirmedCount)
	assert.Equal(t, 150.0, summary.ConfirmedRevenueSum)
}

func TestListByCodeNewestFirst(t *testing.T) {
	db := setupTestDB(t)
	l := NewLedger(db, nil)

	older := validInput()
	older.ConversionDate = "2025-01-10"
	_, err := l.Create(older)
	require.NoError(t, err)

	newer := validInput()
	newer.ConversionDate = "2025-03-20"
	_, err = l.Create(newer)
	require.NoError(t, err)

	unrelated := validInput()
	unrelated.ReferralCode = "OTHERCODE001"
	_, err = l.Create(unrelated)
	require.NoError(t, err)

	conversions, err := l.ListByCode("SOMECODE0001")
	require.NoError(t, err)
	require.Len(t, conversions, 2)
	assert.True(t, conversions[0].ConversionDate.After(conversions[1].ConversionDate))
}

func TestListByOwner(t *testing.T) {
	db := setupTestDB(t)

	amb := models.Ambassador{Name: "Jane Doe", Email: "jane@example.com", ReferralCode: "AMBCODE00001", Active: true}
	require.NoError(t, db.Create(&amb).Error)
	require.NoError(t, db.Create(&models.ReferralCode{
		Code:    "AMBCODE00001",
		OwnerID: &amb.ID,
		Kind:    models.CodeKindAmbassador,
		Active:  true,
	}).Error)

	l := NewLedger(db, attribution.NewReconciler(db))

	input := validInput()
	input.ReferralCode = "AMBCODE00001"
	_, err := l.Create(input)
	require.NoError(t, err)

	conversions, err := l.ListByOwner(amb.ID)
	require.NoError(t, err)
	assert.Len(t, conversions, 1)
}

func TestDeactivatedCodeStillAttributesHistorically(t *testing.T) {
	db := setupTestDB(t)

	amb := models.Ambassador{Name: "Jane Doe", Email: "jane@example.com", ReferralCode: "RETIRED00001", Active: true}
	require.NoError(t, db.Create(&amb).Error)
	require.NoError(t, db.Create(&models.ReferralCode{
		Code:    "RETIRED00001",
		OwnerID: &amb.ID,
		Kind:    models.CodeKindAmbassador,
		Active:  false,
	}).Error)

	l := NewLedger(db, attribution.NewReconciler(db))

	input := validInput()
	input.ReferralCode = "RETIRED00001"
	conversion, err := l.Create(input)
	require.NoError(t, err)

	require.NotNil(t, conversion.AttributedOwnerID)
	assert.Equal(t, amb.ID, *conversion.AttributedOwnerID)
}
