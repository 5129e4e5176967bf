// Package docker wraps the Docker client, augmenting it with the few higher
// level operations the image builder needs: presence checks, authenticated
// pulls, and retagging.
package docker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/docker/distribution/reference"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Client wraps the Docker client together with the registry credentials known
// to the local daemon configuration.
type Client struct {
	// Configuration details. Set during initialization, never modified
	// afterwards.
	credentialStores map[string]*credentialStore
	authConfigs      map[string]types.AuthConfig

	// System dependencies. Also set during initialization, never modified
	// afterwards.
	cl  client.ImageAPIClient
	log *logrus.Entry
}

// NewClient populates credentials from the Docker daemon config and returns a
// new Client that uses them.
func NewClient(cl client.ImageAPIClient) *Client {
	d := &Client{
		cl:  cl,
		log: logrus.WithField("component", "docker-client"),
	}

	stores, auths, err := processDockerConfig()
	if err != nil {
		d.log.Infof("couldn't process ~/.docker/config.json %v", err)
	}
	if len(stores) == 0 {
		d.log.Debug("can't find any docker credential stores, continuing without them")
	}
	if len(auths) == 0 {
		d.log.Debug("can't find any auths in ~/.docker/config.json, continuing without them")
	}
	d.credentialStores, d.authConfigs = stores, auths

	return d
}

// ImageExists reports whether the image is present in the local daemon.
func (d *Client) ImageExists(ctx context.Context, name string) (bool, error) {
	ref, err := parseRef(name)
	if err != nil {
		return false, err
	}
	switch _, _, err := d.cl.ImageInspectWithRaw(ctx, ref.String()); {
	case err == nil:
		return true, nil
	case client.IsErrNotFound(err):
		return false, nil
	default:
		return false, errors.Wrapf(err, "error checking if image exists %s", ref.String())
	}
}

// PullImage pulls an image, resolving registry credentials from ECR for ECR
// registries and from the daemon configuration otherwise, and logs aggregate
// pull progress.
func (d *Client) PullImage(ctx context.Context, name string) error {
	ref, err := parseRef(name)
	if err != nil {
		return err
	}

	auth, err := d.resolveAuth(ctx, ref)
	if err != nil {
		return errors.Wrap(err, "could not get docker authentication")
	}

	authString, err := registryToString(auth)
	if err != nil {
		return errors.Wrap(err, "error encoding docker credentials")
	}

	logs, err := d.cl.ImagePull(ctx, ref.String(), types.ImagePullOptions{
		RegistryAuth: authString,
	})
	if err != nil {
		return errors.Wrapf(err, "error pulling image: %s", ref.String())
	}
	defer func() {
		if cErr := logs.Close(); cErr != nil {
			d.log.WithError(cErr).Error("error closing pull log stream")
		}
	}()

	return d.logPullProgress(ctx, logs)
}

// TagImage tags the source image with the target reference.
func (d *Client) TagImage(ctx context.Context, source, target string) error {
	return errors.Wrapf(d.cl.ImageTag(ctx, source, target), "tagging %s as %s", source, target)
}

// resolveAuth picks the credentials for the image's registry domain: an ECR
// token for ECR domains, then a configured credentials helper, then the auths
// section of ~/.docker/config.json, and anonymous access as the last resort.
func (d *Client) resolveAuth(ctx context.Context, image reference.Named) (types.AuthConfig, error) {
	domain := reference.Domain(image)

	if IsECRRegistry(domain) {
		auth, err := ecrAuth(ctx, domain)
		if err != nil {
			return types.AuthConfig{}, errors.Wrapf(err, "resolving ECR token for %s", domain)
		}
		d.log.Debugf("using ECR authorization token for %s", domain)
		return auth, nil
	}

	if store, ok := d.credentialStores[domain]; ok {
		creds, err := store.get()
		if err != nil {
			return types.AuthConfig{}, errors.Wrap(err, "unable to get credentials from helper")
		}
		d.log.Debugf("domain %q found in credHelpers config, using credentials helper", domain)
		return creds, nil
	}

	if auth, ok := d.authConfigs[domain]; ok {
		d.log.Debugf("domain %q found in the auths config", domain)
		return auth, nil
	}

	return types.AuthConfig{}, nil
}

func parseRef(name string) (reference.Named, error) {
	ref, err := reference.ParseNormalizedNamed(name)
	if err != nil {
		return nil, errors.Wrapf(err, "error parsing image name %s", name)
	}
	return reference.TagNameOnly(ref).(reference.Named), nil
}

// registryToString converts the AuthConfig to the base64 encoding the docker
// API expects. Docker stores username and password in an auth section
// formatted as user:pass then base64ed; this is not documented clearly.
func registryToString(reg types.AuthConfig) (string, error) {
	if reg.Auth != "" {
		bs, err := base64.StdEncoding.DecodeString(reg.Auth)
		if err != nil {
			return "", err
		}
		userAndPass := strings.SplitN(string(bs), ":", 2)
		if len(userAndPass) != 2 {
			return "", errors.Errorf("auth field of docker authConfig must be base64ed user:pass")
		}
		reg.Username, reg.Password = userAndPass[0], userAndPass[1]
		reg.Auth = ""
	}
	bs, err := json.Marshal(reg)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(bs), nil
}
