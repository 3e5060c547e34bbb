package main

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	fbapp "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"

	"learnhub/internal/adapter/api/handler"
	"learnhub/internal/adapter/repository"
	domainrepo "learnhub/internal/domain/repository"
	"learnhub/internal/domain/service"
	"learnhub/internal/infrastructure/firebase"
	"learnhub/internal/infrastructure/mongodb"
	"learnhub/internal/infrastructure/storage"
	"learnhub/pkg/config"
	"learnhub/pkg/logger"
)

// backend holds the stores selected by STORE_DRIVER and STORAGE_DRIVER.
type backend struct {
	messageRepo      domainrepo.MessageRepository
	userRepo         domainrepo.UserRepository
	courseRepo       domainrepo.CourseRepository
	fileMetadataRepo domainrepo.FileMetadataRepository
	fileService      service.FileUploadService

	firebaseApp *fbapp.App
	checks      map[string]handler.HealthCheck
	closers     []func()
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	b := &backend{checks: map[string]handler.HealthCheck{}}

	var mongoClient *mongodb.MongoClient

	switch cfg.StoreDriver {
	case config.StoreMongo:
		client, err := mongodb.NewMongoConnection(ctx, cfg)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() { client.Close(context.Background()) })
		mongoClient = client

		if err := client.EnsureIndexes(ctx); err != nil {
			b.Close()
			return nil, err
		}

		b.messageRepo = repository.NewMongoMessageRepository(client.Database)
		b.userRepo = repository.NewMongoUserRepository(client.Database)
		b.courseRepo = repository.NewMongoCourseRepository(client.Database)
		b.fileMetadataRepo = repository.NewMongoFileMetadataRepository(client.Database)
		b.checks["mongodb"] = func(ctx context.Context) error {
			return client.Client.Ping(ctx, nil)
		}

	default:
		app, err := firebase.NewApp(ctx, cfg)
		if err != nil {
			return nil, err
		}
		b.firebaseApp = app

		client, err := app.Firestore(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create Firestore client: %w", err)
		}
		b.closers = append(b.closers, func() { client.Close() })

		b.messageRepo = repository.NewFirestoreMessageRepository(client)
		b.userRepo = repository.NewFirestoreUserRepository(client)
		b.courseRepo = repository.NewFirestoreCourseRepository(client)
		b.fileMetadataRepo = repository.NewFirestoreFileMetadataRepository(client)
		b.checks["firestore"] = firestoreCheck(client)
	}

	switch cfg.StorageDriver {
	case config.StorageGridFS:
		b.fileService = storage.NewGridFSStorage(mongoClient.GridFS)

	default:
		client, err := storage.NewCloudStorageClient(ctx, cfg.StorageBucket, firebase.ClientOption(cfg)...)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.fileService = client
	}
	b.closers = append(b.closers, func() { b.fileService.Close() })

	logger.Info("Backend ready: store=%s storage=%s", cfg.StoreDriver, cfg.StorageDriver)
	return b, nil
}

func firestoreCheck(client *firestore.Client) handler.HealthCheck {
	return func(ctx context.Context) error {
		_, err := client.Collection(repository.MessagesCollection).Limit(1).Documents(ctx).Next()
		if err == iterator.Done {
			return nil
		}
		return err
	}
}

// Close releases clients in reverse order of creation.
func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}
