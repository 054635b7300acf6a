package app

import (
	"context"
	"fmt"

	filesHTTP "github.com/allisson/hsmvault/internal/files/http"
	filesRepository "github.com/allisson/hsmvault/internal/files/repository"
	filesUseCase "github.com/allisson/hsmvault/internal/files/usecase"
)

// FileRepository returns the blob-backed artifact store.
func (c *Container) FileRepository() (*filesRepository.BlobRepository, error) {
	var err error
	c.fileRepositoryInit.Do(func() {
		c.fileRepository, err = c.initFileRepository()
		if err != nil {
			c.initErrors["fileRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["fileRepository"]; exists {
		return nil, storedErr
	}
	return c.fileRepository, nil
}

// FileUseCase returns the file protection use case instrumented with business metrics.
func (c *Container) FileUseCase() (filesUseCase.FileUseCase, error) {
	var err error
	c.fileUseCaseInit.Do(func() {
		c.fileUseCase, err = c.initFileUseCase()
		if err != nil {
			c.initErrors["fileUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["fileUseCase"]; exists {
		return nil, storedErr
	}
	return c.fileUseCase, nil
}

// FileHandler returns the HTTP handler for file operations.
func (c *Container) FileHandler() (*filesHTTP.FileHandler, error) {
	var err error
	c.fileHandlerInit.Do(func() {
		c.fileHandler, err = c.initFileHandler()
		if err != nil {
			c.initErrors["fileHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["fileHandler"]; exists {
		return nil, storedErr
	}
	return c.fileHandler, nil
}

// initFileRepository opens STORAGE_URL, or DATA_DIR when no URL is set.
func (c *Container) initFileRepository() (*filesRepository.BlobRepository, error) {
	repo, err := filesRepository.OpenBlobRepository(context.Background(), c.config.StorageURL, c.config.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open file repository: %w", err)
	}
	return repo, nil
}

// initFileUseCase creates the file use case with all its dependencies.
func (c *Container) initFileUseCase() (filesUseCase.FileUseCase, error) {
	repo, err := c.FileRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get file repository for file use case: %w", err)
	}

	dekManager, err := c.DekManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get dek manager for file use case: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for file use case: %w", err)
	}

	useCase := filesUseCase.NewFileUseCase(repo, dekManager, c.EnvelopeCipher(), c.Logger())
	return filesUseCase.NewFileUseCaseWithMetrics(useCase, businessMetrics), nil
}

// initFileHandler creates the file handler.
func (c *Container) initFileHandler() (*filesHTTP.FileHandler, error) {
	useCase, err := c.FileUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get file use case for file handler: %w", err)
	}

	return filesHTTP.NewFileHandler(useCase, c.config.MaxUploadSize, c.Logger()), nil
}
