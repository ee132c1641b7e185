package domain

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Reflection{}, &DeliveryRun{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestTableNames(t *testing.T) {
	if (Reflection{}).TableName() != "daily_reflections" {
		t.Fatalf("Reflection.TableName() = %q", (Reflection{}).TableName())
	}
	if (DeliveryRun{}).TableName() != "delivery_runs" {
		t.Fatalf("DeliveryRun.TableName() = %q", (DeliveryRun{}).TableName())
	}
}

func TestMigrations_Indexes(t *testing.T) {
	db := newDomainDB(t)
	m := db.Migrator()

	if !m.HasTable(&Reflection{}) || !m.HasTable(&DeliveryRun{}) {
		t.Fatalf("expected both tables to exist")
	}
	if !m.HasIndex(&Reflection{}, "idx_reflections_month_day") {
		t.Fatalf("expected month_day index")
	}
	if !m.HasIndex(&DeliveryRun{}, "ux_delivery_key") {
		t.Fatalf("expected unique delivery key index")
	}
	if !m.HasColumn(&Reflection{}, "reflection") {
		t.Fatalf("Body must map to the reflection column")
	}
}

func TestReflection_PrimaryKeyIsDateString(t *testing.T) {
	db := newDomainDB(t)

	page := 86
	first := Reflection{DateString: "14 OCTOBER", MonthDay: "10-14", Title: "A", PageNumber: &page}
	if err := db.Create(&first).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	dup := Reflection{DateString: "14 OCTOBER", MonthDay: "10-14", Title: "B"}
	if err := db.Create(&dup).Error; err == nil {
		t.Fatalf("expected primary key violation on duplicate date_string")
	}

	var got Reflection
	if err := db.First(&got, "date_string = ?", "14 OCTOBER").Error; err != nil {
		t.Fatalf("read back: %v", err)
	}
	if got.Title != "A" || got.PageNumber == nil || *got.PageNumber != 86 || got.BookName != nil {
		t.Fatalf("unexpected row: %+v", got)
	}
}

func TestDeliveryRun_StatusCheckAndNullableKey(t *testing.T) {
	db := newDomainDB(t)
	exp := time.Now().Add(time.Hour)

	// Two rows without a key are allowed (NULLs are distinct in a unique index).
	for i := 0; i < 2; i++ {
		r := DeliveryRun{ID: fmt.Sprintf("00000000-0000-0000-0000-00000000000%d", i), DateString: "1 JANUARY", Status: DeliveryCompleted, ExpiresAt: exp}
		if err := db.Create(&r).Error; err != nil {
			t.Fatalf("create keyless run %d: %v", i, err)
		}
	}

	bad := DeliveryRun{ID: "00000000-0000-0000-0000-000000000009", DateString: "1 JANUARY", Status: "weird", ExpiresAt: exp}
	if err := db.Create(&bad).Error; err == nil {
		t.Fatalf("expected CHECK constraint failure for unknown status")
	}

	var n int64
	if err := db.Model(&DeliveryRun{}).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}
}
