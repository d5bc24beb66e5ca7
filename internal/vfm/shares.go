package vfm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"vfm-go/internal/model"
)

// ShareCode classifies a ShareResult for callers that branch on it.
type ShareCode string

const (
	ShareOK            ShareCode = "ok"
	ShareMissingFields ShareCode = "missing_fields"
	ShareSelf          ShareCode = "self_share"
	ShareFileNotFound  ShareCode = "file_not_found"
	ShareNotFound      ShareCode = "share_not_found"
	ShareNotOwner      ShareCode = "not_owner"
	ShareAlreadyShared ShareCode = "already_shared"
	ShareInternal      ShareCode = "internal"
)

// ShareResult is what Share and Revoke return instead of an error.
type ShareResult struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Code    ShareCode    `json:"code"`
	Share   *model.Share `json:"share,omitempty"`
}

func shareFailed(code ShareCode, msg string) ShareResult {
	return ShareResult{Success: false, Message: msg, Code: code}
}

// SharedFile is a file someone else shared with the current user.
type SharedFile struct {
	model.File
	OwnerName  string `json:"ownerName"`
	OwnerEmail string `json:"ownerEmail"`
}

// Access is the answer to CanAccess. Permission is "owner" or "view" when
// CanAccess is true and empty otherwise.
type Access struct {
	CanAccess  bool   `json:"canAccess"`
	Permission string `json:"permission,omitempty"`
}

const PermissionOwner = "owner"

// Sharing grants and revokes view access to single files, independent of
// where they sit in the folder tree.
type Sharing struct {
	store  MetadataStore
	logger Logger
	idgen  IDGenerator
}

func NewSharing(store MetadataStore, logger Logger, idgen IDGenerator) *Sharing {
	return &Sharing{store: store, logger: logger, idgen: idgen}
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Share gives recipientEmail view access to a file owned by the acting
// user. The recipient does not need an account yet; the share is linked to
// one if it exists.
func (s *Sharing) Share(ctx context.Context, fileID, recipientEmail, actingUserID, actingUserEmail string) ShareResult {
	email := NormalizeEmail(recipientEmail)
	if fileID == "" || email == "" || actingUserID == "" {
		return shareFailed(ShareMissingFields, "Missing required fields")
	}
	if email == NormalizeEmail(actingUserEmail) {
		return shareFailed(ShareSelf, "You cannot share with yourself")
	}

	res, err := s.share(ctx, fileID, email, actingUserID)
	if err != nil {
		s.logger.Error("sharing file failed", "file", fileID, "error", err)
		return shareFailed(ShareInternal, "Failed to share file")
	}
	return res
}

func (s *Sharing) share(ctx context.Context, fileID, email, actingUserID string) (ShareResult, error) {
	file, err := s.store.Files().Get(ctx, fileID)
	if err != nil {
		return ShareResult{}, err
	}
	if file == nil {
		return shareFailed(ShareFileNotFound, "File not found"), nil
	}
	if file.Owner != actingUserID {
		return shareFailed(ShareNotOwner, "You can only share files you own"), nil
	}

	existing, err := s.store.Shares().GetByIndex(ctx, IndexFileID, fileID)
	if err != nil {
		return ShareResult{}, err
	}
	for _, sh := range existing {
		if NormalizeEmail(sh.SharedWithEmail) == email {
			return shareFailed(ShareAlreadyShared, "File already shared with this user"), nil
		}
	}

	recipients, err := s.store.Users().GetByIndex(ctx, IndexEmail, email)
	if err != nil {
		return ShareResult{}, err
	}

	share := &model.Share{
		ID:              s.idgen.New(),
		FileID:          fileID,
		OwnerID:         actingUserID,
		SharedWithEmail: email,
		Permission:      model.PermissionView,
	}
	if len(recipients) > 0 {
		share.SharedWithUserID = recipients[0].ID
	}
	if err := s.store.Shares().Add(ctx, share); err != nil {
		return ShareResult{}, err
	}

	s.logger.Info("file shared", "file", fileID, "with", email, "share", share.ID)

	msg := "Share created. User must register with this email to access."
	if share.SharedWithUserID != "" {
		msg = "File shared successfully"
	}
	return ShareResult{Success: true, Message: msg, Code: ShareOK, Share: share}, nil
}

// sharesFor collects the shares addressed to a user by email and then by
// user id. A file may appear under both.
func (s *Sharing) sharesFor(ctx context.Context, userID, email string) ([]*model.Share, error) {
	byEmail, err := s.store.Shares().GetByIndex(ctx, IndexSharedWithEmail, NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("shares by email: %w", err)
	}
	if userID == "" {
		return byEmail, nil
	}
	byUser, err := s.store.Shares().GetByIndex(ctx, IndexSharedWithUserID, userID)
	if err != nil {
		return nil, fmt.Errorf("shares by user: %w", err)
	}
	return append(byEmail, byUser...), nil
}

// ListSharedWithMe returns the files shared with a user, one entry per
// file. When several shares point at one file the last one collected wins.
// Shares whose file or owner is gone are skipped. Store failures are
// logged and yield an empty list.
func (s *Sharing) ListSharedWithMe(ctx context.Context, userID, email string) []SharedFile {
	out, err := s.listSharedWithMe(ctx, userID, email)
	if err != nil {
		s.logger.Warn("listing shared files failed", "user", userID, "error", err)
		return []SharedFile{}
	}
	return out
}

func (s *Sharing) listSharedWithMe(ctx context.Context, userID, email string) ([]SharedFile, error) {
	shares, err := s.sharesFor(ctx, userID, email)
	if err != nil {
		return nil, err
	}

	var order []string
	byFile := make(map[string]*model.Share)
	for _, sh := range shares {
		if _, seen := byFile[sh.FileID]; !seen {
			order = append(order, sh.FileID)
		}
		byFile[sh.FileID] = sh
	}

	out := make([]SharedFile, 0, len(order))
	for _, fileID := range order {
		sh := byFile[fileID]

		file, err := s.store.Files().Get(ctx, fileID)
		if err != nil {
			return nil, err
		}
		if file == nil {
			continue
		}
		owner, err := s.store.Users().Get(ctx, sh.OwnerID)
		if err != nil {
			return nil, err
		}
		if owner == nil {
			continue
		}
		out = append(out, SharedFile{File: *file, OwnerName: owner.Name, OwnerEmail: owner.Email})
	}
	return out, nil
}

// ListSharesForFile returns a file's shares if the acting user owns it,
// and nothing otherwise.
func (s *Sharing) ListSharesForFile(ctx context.Context, fileID, actingUserID string) []*model.Share {
	file, err := s.store.Files().Get(ctx, fileID)
	if err != nil {
		s.logger.Warn("listing file shares failed", "file", fileID, "error", err)
		return []*model.Share{}
	}
	if file == nil || file.Owner != actingUserID {
		return []*model.Share{}
	}

	shares, err := s.store.Shares().GetByIndex(ctx, IndexFileID, fileID)
	if err != nil {
		s.logger.Warn("listing file shares failed", "file", fileID, "error", err)
		return []*model.Share{}
	}
	return shares
}

// ListMyShares returns every share an owner has created.
func (s *Sharing) ListMyShares(ctx context.Context, ownerID string) []*model.Share {
	shares, err := s.store.Shares().GetByIndex(ctx, IndexOwnerID, ownerID)
	if err != nil {
		s.logger.Warn("listing shares failed", "owner", ownerID, "error", err)
		return []*model.Share{}
	}
	return shares
}

// Revoke deletes a share created by the acting user.
func (s *Sharing) Revoke(ctx context.Context, shareID, actingUserID string) ShareResult {
	share, err := s.store.Shares().Get(ctx, shareID)
	if err != nil {
		s.logger.Error("revoking share failed", "share", shareID, "error", err)
		return shareFailed(ShareInternal, "Failed to revoke share")
	}
	if share == nil {
		return shareFailed(ShareNotFound, "Share not found")
	}
	if share.OwnerID != actingUserID {
		return shareFailed(ShareNotOwner, "You can only revoke your own shares")
	}
	if err := s.store.Shares().Delete(ctx, shareID); err != nil {
		s.logger.Error("revoking share failed", "share", shareID, "error", err)
		return shareFailed(ShareInternal, "Failed to revoke share")
	}

	s.logger.Info("share revoked", "share", shareID, "file", share.FileID)
	return ShareResult{Success: true, Message: "Share revoked successfully", Code: ShareOK, Share: share}
}

// CanAccess decides whether a user may read a file: owners always, others
// through a share addressed to their email or user id. Store failures deny
// access.
func (s *Sharing) CanAccess(ctx context.Context, fileID, userID, email string) Access {
	file, err := s.store.Files().Get(ctx, fileID)
	if err != nil {
		s.logger.Warn("checking access failed", "file", fileID, "error", err)
		return Access{}
	}
	if file == nil {
		return Access{}
	}
	if file.Owner == userID {
		return Access{CanAccess: true, Permission: PermissionOwner}
	}

	shares, err := s.sharesFor(ctx, userID, email)
	if err != nil {
		s.logger.Warn("checking access failed", "file", fileID, "error", err)
		return Access{}
	}
	for _, sh := range shares {
		if sh.FileID == fileID {
			return Access{CanAccess: true, Permission: string(sh.Permission)}
		}
	}
	return Access{}
}

// DeleteSharesForFile removes every share of a file. All deletes are
// attempted; the failures are returned together.
func (s *Sharing) DeleteSharesForFile(ctx context.Context, fileID string) error {
	shares, err := s.store.Shares().GetByIndex(ctx, IndexFileID, fileID)
	if err != nil {
		s.logger.Error("listing shares for delete failed", "file", fileID, "error", err)
		return fmt.Errorf("listing shares of file %s: %w", fileID, err)
	}

	var errs []error
	for _, sh := range shares {
		if err := s.store.Shares().Delete(ctx, sh.ID); err != nil {
			s.logger.Error("deleting share failed", "share", sh.ID, "file", fileID, "error", err)
			errs = append(errs, fmt.Errorf("share %s: %w", sh.ID, err))
		}
	}
	return errors.Join(errs...)
}
