package sync

import (
	"context"
	"encoding/json"
	"time"

	"github.com/revlytic/revlytic-backend/internal/connections"
	googleplayreport "github.com/revlytic/revlytic-backend/internal/reports/googleplay"
	"github.com/revlytic/revlytic-backend/pkg/db/models"
	"github.com/revlytic/revlytic-backend/pkg/enums"
	pkgerrors "github.com/revlytic/revlytic-backend/pkg/errors"
	"github.com/revlytic/revlytic-backend/pkg/logger"
	"github.com/revlytic/revlytic-backend/pkg/storage/gcs"
)

type googlePlaySource struct {
	parser    *googleplayreport.Parser
	logg      *logger.Logger
	newBucket func(credentialsJSON, bucket string) (googleplayreport.Bucket, error)
}

func newGooglePlaySource(params SourcesParams) (*googlePlaySource, error) {
	if err := requireConverter(params); err != nil {
		return nil, err
	}
	parser, err := googleplayreport.NewParser(googleplayreport.ParserParams{
		Converter: params.Converter,
		Logger:    params.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &googlePlaySource{
		parser: parser,
		logg:   params.Logger,
		newBucket: func(credentialsJSON, bucket string) (googleplayreport.Bucket, error) {
			return gcs.NewClient(credentialsJSON, bucket)
		},
	}, nil
}

func (s *googlePlaySource) Platform() enums.Platform {
	return enums.PlatformGooglePlay
}

func (s *googlePlaySource) FetchRange(ctx context.Context, conn *models.Connection, preferredCurrency string, from, to time.Time) (FetchResult, error) {
	var creds connections.GooglePlayCredentials
	if err := json.Unmarshal(conn.Credentials, &creds); err != nil {
		return FetchResult{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decoding play credentials")
	}

	bucket, err := s.newBucket(creds.ServiceAccountJSON, creds.Bucket)
	if err != nil {
		return FetchResult{}, pkgerrors.Wrap(pkgerrors.CodeAuthentication, err, "building bucket client")
	}

	fetcher, err := googleplayreport.NewFetcher(googleplayreport.FetcherParams{
		Bucket: bucket,
		Parser: s.parser,
		Logger: s.logg,
	})
	if err != nil {
		return FetchResult{}, err
	}

	batch, err := fetcher.FetchRange(ctx, creds.Prefix, preferredCurrency, from, to)
	if err != nil {
		return FetchResult{}, err
	}
	return FetchResult{Batch: batch}, nil
}
