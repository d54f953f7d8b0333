// Package drive places archived receipts into a Google Drive folder
// hierarchy of the form root -> fiscal quarter -> category.
package drive

import (
	"context"
	"fmt"
	"os"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const folderMimeType = "application/vnd.google-apps.folder"

// Archive provides folder resolution and file placement in Drive.
type Archive struct {
	svc *drive.Service
}

// NewArchive creates an Archive. Pass option.WithCredentialsFile for service
// account auth; tests pass option.WithEndpoint and option.WithHTTPClient.
func NewArchive(ctx context.Context, opts ...option.ClientOption) (*Archive, error) {
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("drive: create service: %w", err)
	}
	return &Archive{svc: svc}, nil
}

// EnsureFolder returns the ID of the non-trashed folder named name directly
// under parentID, creating it when absent. When parentID is empty the search
// has no parent constraint.
//
// If several sibling folders already share the name, the first one the
// service returns is used; duplicates are never deduplicated here.
func (a *Archive) EnsureFolder(ctx context.Context, name, parentID string) (string, error) {
	list, err := a.svc.Files.List().
		Q(folderQuery(name, parentID)).
		Spaces("drive").
		Fields("files(id, name)").
		PageSize(10).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("drive: searching for folder %q: %w", name, err)
	}

	if len(list.Files) > 0 {
		return list.Files[0].Id, nil
	}

	meta := &drive.File{
		Name:     name,
		MimeType: folderMimeType,
	}
	if parentID != "" {
		meta.Parents = []string{parentID}
	}

	created, err := a.svc.Files.Create(meta).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("drive: creating folder %q: %w", name, err)
	}

	return created.Id, nil
}

// UploadFile uploads the file at localPath into the folder parentFolderID
// under the given name using a resumable media transfer, and returns the
// new file's Drive ID.
func (a *Archive) UploadFile(ctx context.Context, localPath, fileName, parentFolderID string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("drive: open file %q: %w", localPath, err)
	}
	defer f.Close()

	meta := &drive.File{
		Name:    fileName,
		Parents: []string{parentFolderID},
	}

	uploaded, err := a.svc.Files.Create(meta).
		Media(f, googleapi.ChunkSize(googleapi.DefaultUploadChunkSize)).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("drive: uploading %q: %w", fileName, err)
	}

	return uploaded.Id, nil
}

// folderQuery builds a Drive search query matching a non-trashed folder by
// exact name, optionally constrained to a parent.
func folderQuery(name, parentID string) string {
	q := fmt.Sprintf("name='%s' and mimeType='%s' and trashed=false", escapeQueryValue(name), folderMimeType)
	if parentID != "" {
		q += fmt.Sprintf(" and '%s' in parents", escapeQueryValue(parentID))
	}
	return q
}

// escapeQueryValue escapes backslashes and single quotes for Drive query
// string literals.
func escapeQueryValue(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
