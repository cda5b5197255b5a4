package toolchain

import (
	"context"
	"crypto"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/s2l-bootstrap/internal/logger"

	// Register SHA-256 for installer verification.
	_ "crypto/sha256"
)

const (
	// installerFileMode makes the downloaded script executable.
	installerFileMode os.FileMode = 0o755

	// installerChecksumFunction verifies pinned installer checksums.
	installerChecksumFunction crypto.Hash = crypto.SHA256
)

var errBadHTTPStatus = errors.New("unexpected http status")

// download fetches the installer for this platform and writes it to
// target atomically, verifying the pinned checksum when configured.
func (s *Service) download(ctx context.Context, target string) error {
	name, err := s.platform.InstallerName()
	if err != nil {
		return err
	}

	installerURL, err := url.JoinPath(s.installer.BaseURL, name)
	if err != nil {
		return fmt.Errorf("installer url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, installerURL, http.NoBody)
	if err != nil {
		return err
	}

	response, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("%s, %s: %w", installerURL, response.Status, errBadHTTPStatus)
	}

	options := goupdate.Options{
		TargetPath: target,
		TargetMode: installerFileMode,
		Hash:       installerChecksumFunction,
	}

	if s.installer.SHA256 != "" {
		if options.Checksum, err = hex.DecodeString(s.installer.SHA256); err != nil {
			return fmt.Errorf("decode installer checksum: %w", err)
		}
	}

	// go-update swaps an existing file, so make sure there is one.
	if _, err = os.Stat(target); errors.Is(err, os.ErrNotExist) {
		var placeholder *os.File
		if placeholder, err = os.Create(target); err != nil {
			return err
		}

		_ = placeholder.Close()
	}

	if err = goupdate.Apply(response.Body, options); err != nil {
		return fmt.Errorf("apply installer: %w", err)
	}

	logger.InfoKV(ctx, "Downloaded installer", "url", installerURL, "path", target)

	return nil
}
