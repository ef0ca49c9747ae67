package backup

import (
	"context"
	"fmt"
	"net/url"
	"os"

	"github.com/Azure/azure-storage-blob-go/azblob"
)

// AzureOffsiteTarget replicates archives to an Azure Blob container.
type AzureOffsiteTarget struct {
	serviceURL    azblob.ServiceURL
	containerName string
}

// NewAzureOffsiteTarget creates an Azure Blob offsite target.
func NewAzureOffsiteTarget(config *AzureTarget) (*AzureOffsiteTarget, error) {
	if config == nil || config.AccountName == "" || config.AccountKey == "" || config.Container == "" {
		return nil, NewConfigError("azure offsite target requires account_name, account_key and container", nil)
	}

	credential, err := azblob.NewSharedKeyCredential(config.AccountName, config.AccountKey)
	if err != nil {
		return nil, NewIOError("failed to create Azure credentials", err)
	}

	pipeline := azblob.NewPipeline(credential, azblob.PipelineOptions{})

	serviceURL, err := url.Parse(fmt.Sprintf("https://%s.blob.core.windows.net", config.AccountName))
	if err != nil {
		return nil, NewIOError("failed to parse Azure service URL", err)
	}

	return &AzureOffsiteTarget{
		serviceURL:    azblob.NewServiceURL(*serviceURL, pipeline),
		containerName: config.Container,
	}, nil
}

// Upload streams the archive file to the container as a block blob.
func (at *AzureOffsiteTarget) Upload(ctx context.Context, localPath, name string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open archive for upload: %w", err)
	}
	defer file.Close()

	containerURL := at.serviceURL.NewContainerURL(at.containerName)
	blobURL := containerURL.NewBlockBlobURL(name)

	_, err = azblob.UploadFileToBlockBlob(ctx, file, blobURL, azblob.UploadToBlockBlobOptions{
		BlockSize:   4 * 1024 * 1024,
		Parallelism: 16,
		Metadata: azblob.Metadata{
			"archive-name": name,
		},
		BlobHTTPHeaders: azblob.BlobHTTPHeaders{
			ContentType: "application/octet-stream",
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload archive to Azure: %w", err)
	}

	return fmt.Sprintf("azure://%s/%s", at.containerName, name), nil
}

// GetType returns the provider type.
func (at *AzureOffsiteTarget) GetType() OffsiteProvider {
	return OffsiteProviderAzure
}
