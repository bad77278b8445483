package main

import (
	"errors"
	"log"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"careercraft/internal/auth"
	"careercraft/internal/config"
	"careercraft/internal/database"
)

// Seeds a demo account with one resume and one completed analysis so a fresh
// deployment has something to look at. Safe to run repeatedly: the user is
// looked up by email and the sample rows are only created alongside it.
func main() {
	cfg := config.MustGet()

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}

	const demoEmail = "demo@careercraft.ai"

	var user database.User
	switch err := db.Where("email = ?", demoEmail).First(&user).Error; {
	case err == nil:
		log.Printf("demo user already present: %s", user.Email)
		return
	case errors.Is(err, gorm.ErrRecordNotFound):
		// fall through and create
	default:
		log.Fatalf("query demo user: %v", err)
	}

	hash, err := auth.HashPassword("demo123")
	if err != nil {
		log.Fatalf("hash demo password: %v", err)
	}

	user = database.User{
		Email:        demoEmail,
		Name:         "Demo User",
		PasswordHash: hash,
		Role:         database.RoleUser,
	}
	if err := db.Create(&user).Error; err != nil {
		log.Fatalf("create demo user: %v", err)
	}
	log.Printf("created demo user: %s", user.Email)

	resume := database.Resume{
		UserID:     user.ID,
		FileName:   "sample-resume.pdf",
		FileURL:    "samples/sample-resume.pdf",
		FileSize:   102400,
		MimeType:   "application/pdf",
		ParsedText: "Sample resume text content...",
		Status:     database.ResumeStatusReady,
	}
	if err := db.Create(&resume).Error; err != nil {
		log.Fatalf("create sample resume: %v", err)
	}
	log.Printf("created sample resume: %s", resume.FileName)

	score := 85.5
	analysis := database.Analysis{
		UserID:       user.ID,
		ResumeID:     resume.ID,
		Type:         database.AnalysisTypeComprehensive,
		Status:       database.AnalysisStatusCompleted,
		OverallScore: &score,
		Strengths: datatypes.NewJSONSlice([]string{
			"Strong technical skills section",
			"Clear and concise experience descriptions",
			"Quantifiable achievements",
		}),
		Weaknesses: datatypes.NewJSONSlice([]string{
			"Missing action verbs in some bullets",
			"Could improve formatting consistency",
		}),
		Suggestions: datatypes.NewJSONSlice([]string{
			"Add more metrics to demonstrate impact",
			"Consider a professional summary section",
			"Optimize keywords for ATS",
		}),
		Keywords:       datatypes.NewJSONSlice([]string{"JavaScript", "React", "Node.js", "TypeScript", "AWS"}),
		AIModel:        cfg.AI.Model,
		AIProvider:     cfg.AI.Provider,
		TokensUsed:     1250,
		ProcessingTime: 2300,
	}
	if err := db.Create(&analysis).Error; err != nil {
		log.Fatalf("create sample analysis: %v", err)
	}
	log.Printf("created sample analysis with score %.1f", score)

	log.Printf("database seeding completed")
}
