package aws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"time"

	"flowsmartly-studio/core"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// s3Store persists each design as one JSON object under {ownerID}/{designID}.
type s3Store struct {
	s3Client *s3.Client
	bucket   string
}

// NewStore creates a new S3-based store.
func NewStore(bucketName string) *s3Store {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Fatalf("unable to load SDK config, %v", err)
	}

	return &s3Store{
		s3Client: s3.NewFromConfig(cfg),
		bucket:   bucketName,
	}
}

// designKey sanitizes the design id so a crafted id cannot traverse out of
// the owner's prefix.
func designKey(ownerID, designID string) (string, error) {
	if path.Base(designID) != designID {
		return "", fmt.Errorf("invalid design id: must not be a path")
	}
	if designID == "" || designID == "." || designID == ".." {
		return "", fmt.Errorf("invalid design id: must not be empty or a dot directory")
	}
	return path.Join(ownerID, designID), nil
}

func (s *s3Store) List(ctx context.Context, ownerID string) ([]*core.Design, error) {
	prefix := ownerID + "/"
	output, err := s.s3Client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list designs for user %s: %v", ownerID, err)
	}

	designs := make([]*core.Design, 0, len(output.Contents))
	for _, object := range output.Contents {
		resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    object.Key,
		})
		if err != nil {
			log.Printf("warn: failed to get object %s: %v", *object.Key, err)
			continue
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			log.Printf("warn: failed to read object body %s: %v", *object.Key, err)
			continue
		}

		var design core.Design
		if err := json.Unmarshal(data, &design); err != nil {
			log.Printf("warn: failed to unmarshal design %s: %v", *object.Key, err)
			continue
		}

		// List views never carry the page payloads.
		design.Pages = nil
		design.OwnerID = ownerID
		designs = append(designs, &design)
	}

	return designs, nil
}

func (s *s3Store) Get(ctx context.Context, ownerID, id string) (*core.Design, error) {
	key, err := designKey(ownerID, id)
	if err != nil {
		return nil, err
	}
	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("design not found")
		}
		return nil, fmt.Errorf("failed to get design %s: %v", id, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read design data: %v", err)
	}

	var design core.Design
	if err := json.Unmarshal(data, &design); err != nil {
		return nil, fmt.Errorf("failed to unmarshal design data: %v", err)
	}
	design.OwnerID = ownerID
	return &design, nil
}

func (s *s3Store) Save(ctx context.Context, design *core.Design) error {
	key, err := designKey(design.OwnerID, design.ID)
	if err != nil {
		return err
	}

	// Preserve CreatedAt on update
	if design.CreatedAt.IsZero() {
		existing, err := s.Get(ctx, design.OwnerID, design.ID)
		if err == nil && existing != nil {
			design.CreatedAt = existing.CreatedAt
		} else {
			design.CreatedAt = time.Now()
		}
	}
	design.UpdatedAt = time.Now()

	data, err := json.Marshal(design)
	if err != nil {
		return fmt.Errorf("failed to marshal design: %v", err)
	}

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("failed to save design %s: %v", design.ID, err)
	}
	return nil
}

func (s *s3Store) Delete(ctx context.Context, ownerID, id string) error {
	key, err := designKey(ownerID, id)
	if err != nil {
		return err
	}
	_, err = s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete design %s: %v", id, err)
	}
	return nil
}
