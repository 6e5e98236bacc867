package models

import "time"

// Sectors is the closed vocabulary of market sectors. Sector tags outside
// this list are dropped at validation time, and the daily breakdown always
// contains exactly these keys.
var Sectors = []string{
	"IT", "Banking", "Pharma", "Auto", "FMCG",
	"Energy", "Metals", "Real Estate", "Telecom", "Power",
}

// KnownSector reports whether name is part of the sector vocabulary.
func KnownSector(name string) bool {
	for _, s := range Sectors {
		if s == name {
			return true
		}
	}
	return false
}

// SentimentWindowHours is the trailing window of the rolling sentiment gauge.
const SentimentWindowHours = 6

// SentimentSnapshot is the singleton rolling-sentiment record. It is
// overwritten wholesale on every pipeline run, never appended.
type SentimentSnapshot struct {
	AverageScore     float64   `json:"averageScore"` // in [-1, 1]
	ArticlesAnalyzed int       `json:"articlesAnalyzed"`
	WindowHours      int       `json:"windowHours"`
	LastUpdated      time.Time `json:"lastUpdated"`
}

// DailySentimentRecord is one calendar day of aggregated sentiment, keyed by
// date (YYYY-MM-DD, UTC). Re-aggregating a date overwrites the prior record.
type DailySentimentRecord struct {
	Date                  string             `json:"date"`
	OverallSentimentScore float64            `json:"overallSentimentScore"`
	ArticlesAnalyzed      int                `json:"articlesAnalyzed"`
	SectorBreakdown       map[string]float64 `json:"sectorBreakdown"`
	LastUpdated           time.Time          `json:"lastUpdated"`
}

// EmptyDailyRecord returns the record persisted for a day with no articles:
// neutral overall score and a zeroed breakdown for every known sector.
func EmptyDailyRecord(date string, now time.Time) DailySentimentRecord {
	breakdown := make(map[string]float64, len(Sectors))
	for _, s := range Sectors {
		breakdown[s] = 0
	}
	return DailySentimentRecord{
		Date:            date,
		SectorBreakdown: breakdown,
		LastUpdated:     now,
	}
}
