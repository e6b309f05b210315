package interfaces

import (
	"nfl-pickem/database"
	"nfl-pickem/middleware"
	"nfl-pickem/services"
)

// Interface compliance checks - these will fail to compile if services don't implement interfaces
var (
	_ PickService        = (*services.PickService)(nil)
	_ GameService        = (*services.GameService)(nil)
	_ LeaderboardService = (*services.LeaderboardService)(nil)
	_ WeekProcessor      = (*services.WeekPipeline)(nil)
	_ LiveBroker         = (*services.Broker)(nil)
	_ HealthChecker      = (*database.MongoDB)(nil)

	_ services.Publisher = (*services.Broker)(nil)
	_ services.GameFeed  = (*services.FeedClient)(nil)

	_ middleware.TokenAuthenticator = (*services.AuthService)(nil)

	// Repositories
	_ services.PickRepository    = (*database.MongoPickRepository)(nil)
	_ services.PickRepository    = (*database.MemoryPickRepository)(nil)
	_ services.GameRepository    = (*database.MongoGameRepository)(nil)
	_ services.GameRepository    = (*database.MemoryGameRepository)(nil)
	_ services.ScoringRepository = (*database.MongoScoringRepository)(nil)
	_ services.ScoringRepository = (*database.MemoryScoringRepository)(nil)
	_ services.UserDirectory     = (*database.MongoUserRepository)(nil)
	_ services.UserDirectory     = (*database.MemoryUserDirectory)(nil)
)
