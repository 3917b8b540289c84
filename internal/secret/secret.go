// Package secret keeps short lived values, such as an in-flight login's PKCE
// verifier, in the OS keyring. An ini file next to the lock dir indexes the
// keys so they can all be cleared.
package secret

import (
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/werf/lockgate"
	"github.com/werf/lockgate/pkg/file_locker"
	"github.com/zalando/go-keyring"
	ini "gopkg.in/ini.v1"
)

const INI_CONF_SECTION = "pending"

var (
	ErrNotFound                   = errors.New("secret not found")
	ErrCannotLockDir              = errors.New("unable to create lock dir")
	ErrUnableToRetrieveSections   = errors.New("unable to retrieve sections")
	ErrUnableToLoadDueToLock      = errors.New("cannot load secret due to lock error")
	ErrUnableToAcquireLock        = errors.New("cannot acquire lock")
	ErrFailedToClearSecretStorage = errors.New("failed to clear secret storage on OS")
	ErrInvalidKey                 = errors.New("secret key must not be empty or contain dots")
)

// Keyring is the subset of the OS keyring the store needs.
type Keyring interface {
	Set(service, user, password string) error
	Get(service, user string) (string, error)
	Delete(service, user string) error
}

// SecretStore
type SecretStore struct {
	keyring       Keyring
	lockDir       string
	locker        lockgate.Locker
	lockResource  string
	secretService string
	secretUser    string
	iniFile       string
}

func (s *SecretStore) WithLocker(locker lockgate.Locker) *SecretStore {
	s.locker = locker
	return s
}

func (s *SecretStore) WithKeyring(keyring Keyring) *SecretStore {
	s.keyring = keyring
	return s
}

// keyRingImpl is the default keyring implementation
type keyRingImpl struct{}

func (k *keyRingImpl) Set(service, user, password string) error {
	return keyring.Set(service, user, password)
}
func (k *keyRingImpl) Get(service, user string) (string, error) {
	return keyring.Get(service, user)
}
func (k *keyRingImpl) Delete(service, user string) error {
	return keyring.Delete(service, user)
}

// NewSecretStore returns a store whose keyring entries are named after namer
// and whose lock dir and index live in baseDir.
func NewSecretStore(namer, baseDir, username string) (*SecretStore, error) {
	lockDir := path.Join(baseDir, namer+"-lock")
	locker, err := file_locker.NewFileLocker(lockDir)
	if err != nil {
		return nil, fmt.Errorf("cannot setup lock dir: %s, %s, %w", lockDir, err, ErrCannotLockDir)
	}

	return &SecretStore{
		lockDir:       lockDir,
		locker:        locker,
		keyring:       &keyRingImpl{},
		lockResource:  namer,
		secretService: namer,
		secretUser:    username,
		iniFile:       path.Join(baseDir, fmt.Sprintf(".%s.ini", namer)),
	}, nil
}

func (s *SecretStore) ensureLock() (func(), error) {

	acquired, lock, err := s.locker.Acquire(s.lockResource, lockgate.AcquireOptions{Shared: false, Timeout: 1 * time.Minute})
	if err != nil {
		return nil, fmt.Errorf("%s, %w", err, ErrUnableToAcquireLock)
	}

	if !acquired {
		return nil, fmt.Errorf("lock %s not acquired, %w", s.lockResource, ErrUnableToLoadDueToLock)
	}
	return func() {
		if err := s.locker.Release(lock); err != nil {
			log.Warn().Err(err).Str("lock", s.lockResource).Msg("failed to release lock")
		}
	}, nil
}

func (s *SecretStore) service(key string) string {
	return fmt.Sprintf("%s-%s", s.secretService, key)
}

func validKey(key string) error {
	if key == "" || strings.Contains(key, ".") {
		return fmt.Errorf("%q, %w", key, ErrInvalidKey)
	}
	return nil
}

// Save stores value under key and records key in the index.
func (s *SecretStore) Save(key, value string) error {
	if err := validKey(key); err != nil {
		return err
	}
	release, err := s.ensureLock()
	if err != nil {
		return err
	}
	defer release()

	if err := s.keyring.Set(s.service(key), s.secretUser, value); err != nil {
		return err
	}
	return s.writeIniSection(key)
}

// Load returns the value stored under key or ErrNotFound.
func (s *SecretStore) Load(key string) (string, error) {
	if err := validKey(key); err != nil {
		return "", err
	}
	release, err := s.ensureLock()
	if err != nil {
		return "", err
	}
	defer release()

	val, err := s.keyring.Get(s.service(key), s.secretUser)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", fmt.Errorf("%s, %w", key, ErrNotFound)
		}
		return "", err
	}
	return val, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *SecretStore) Delete(key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	release, err := s.ensureLock()
	if err != nil {
		return err
	}
	defer release()

	return s.delete(key)
}

func (s *SecretStore) delete(key string) error {
	if err := s.keyring.Delete(s.service(key), s.secretUser); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("%s, %w", err, ErrFailedToClearSecretStorage)
	}
	return s.removeIniSection(key)
}

// Keys lists every key recorded in the index.
func (s *SecretStore) Keys() ([]string, error) {
	cfg, err := ini.LooseLoad(s.iniFile)
	if err != nil {
		return nil, fmt.Errorf("unable to get sections from ini: %s, %w", err, ErrUnableToRetrieveSections)
	}
	keys := []string{}
	for _, v := range cfg.Section(INI_CONF_SECTION).ChildSections() {
		keys = append(keys, strings.TrimPrefix(v.Name(), INI_CONF_SECTION+"."))
	}
	sort.Strings(keys)
	return keys, nil
}

// ClearAll loops through all the sections in the INI file
// deletes them from the keychain implementation on the OS
func (s *SecretStore) ClearAll() error {
	release, err := s.ensureLock()
	if err != nil {
		return err
	}
	defer release()

	keys, err := s.Keys()
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := s.delete(k); err != nil {
			return err
		}
	}
	return nil
}

func (s *SecretStore) writeIniSection(key string) error {
	section := fmt.Sprintf("%s.%s", INI_CONF_SECTION, key)
	cfg, err := ini.LooseLoad(s.iniFile)
	if err != nil {
		return fmt.Errorf("fail to read Ini file: %v, %w", err, ErrUnableToRetrieveSections)
	}
	if cfg.HasSection(section) {
		return nil
	}
	sct, err := cfg.NewSection(section)
	if err != nil {
		return err
	}
	sct.Key("created").SetValue(time.Now().UTC().Format(time.RFC3339))
	return s.saveIni(cfg)
}

func (s *SecretStore) removeIniSection(key string) error {
	cfg, err := ini.LooseLoad(s.iniFile)
	if err != nil {
		return fmt.Errorf("fail to read Ini file: %v, %w", err, ErrUnableToRetrieveSections)
	}
	section := fmt.Sprintf("%s.%s", INI_CONF_SECTION, key)
	if !cfg.HasSection(section) {
		return nil
	}
	cfg.DeleteSection(section)
	return s.saveIni(cfg)
}

func (s *SecretStore) saveIni(cfg *ini.File) error {
	if err := os.MkdirAll(path.Dir(s.iniFile), 0o700); err != nil {
		return err
	}
	return cfg.SaveTo(s.iniFile)
}
