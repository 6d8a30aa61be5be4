package database

import (
	"fmt"
	"log"
	"os"
	"time"

	config "github.com/anjiri1684/learning_assessment/configs"
	"github.com/anjiri1684/learning_assessment/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// ongoingIndexSQL keeps at most one ongoing attempt per (test, student) at the storage layer.
const ongoingIndexSQL = `CREATE UNIQUE INDEX IF NOT EXISTS idx_one_ongoing_attempt
	ON test_attempts (test_id, student_id) WHERE state = 'ongoing'`

func GormConfig() *gorm.Config {
	return &gorm.Config{
		PrepareStmt:                              false,
		SkipDefaultTransaction:                   true,
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		Logger: logger.New(log.New(os.Stdout, "\r\n", log.LstdFlags), logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}
}

func ConnectDB() {
	var err error
	dsn := config.Config("DATABASE_URL")

	DB, err = gorm.Open(postgres.Open(dsn), GormConfig())
	if err != nil {
		log.Fatalf("🔥 Failed to connect to database: %v", err)
	}

	fmt.Println("✅ Database connected successfully")
}

func TunePool(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Printf("⚠️ Could not tune connection pool: %v", err)
		return
	}
	sqlDB.SetMaxOpenConns(config.ConfigInt("DB_MAX_OPEN_CONNS", 25))
	sqlDB.SetMaxIdleConns(config.ConfigInt("DB_MAX_IDLE_CONNS", 10))
	sqlDB.SetConnMaxLifetime(config.ConfigDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute))
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Classroom{},
		&models.Enrollment{},
		&models.TestDefinition{},
		&models.Question{},
		&models.AnswerOption{},
		&models.TestAttempt{},
		&models.StudentResponse{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if err := db.Exec(ongoingIndexSQL).Error; err != nil {
		return fmt.Errorf("create ongoing attempt index: %w", err)
	}
	return nil
}
