// Command admin-token mints a bearer token for the admin API using the
// configured JWT secret.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/stockroom/pkg/auth"
	"github.com/angelmondragon/stockroom/pkg/config"
	"github.com/angelmondragon/stockroom/pkg/enums"
	"github.com/angelmondragon/stockroom/pkg/logger"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "admin-token"})
	_ = godotenv.Load()

	subject := flag.String("subject", "", "token subject, usually the operator's email")
	role := flag.String("role", string(enums.ActorRoleAdmin), "actor role: admin|user")
	ttl := flag.Int("ttl-minutes", 0, "override STOCKROOM_JWT_EXPIRATION_MINUTES")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	actorRole, err := enums.ParseActorRole(*role)
	if err != nil {
		logg.Error(context.Background(), "invalid role", err)
		os.Exit(2)
	}
	jwtCfg := cfg.JWT
	if *ttl > 0 {
		jwtCfg.ExpirationMinutes = *ttl
	}

	token, err := auth.MintAccessToken(jwtCfg, time.Now(), auth.AccessTokenPayload{Subject: *subject, Role: actorRole})
	if err != nil {
		logg.Error(context.Background(), "failed to mint token", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
