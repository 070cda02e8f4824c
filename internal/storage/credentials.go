package storage

import (
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/pkg/errors"
)

// Well-known Azurite development account.
const (
	emulatorAccount  = "devstoreaccount1"
	emulatorKey      = "Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw=="
	emulatorEndpoint = "http://127.0.0.1:10002/devstoreaccount1"
)

// ErrNoCredentials is returned when neither a connection string nor an
// account name is configured.
var ErrNoCredentials = errors.New("no table storage credentials configured")

// Credential is one way of authenticating to Table Storage. The set of
// implementations is closed: EmulatorCredential, SharedKeyCredential and
// ManagedIdentityCredential.
type Credential interface {
	// Kind names the variant for logging.
	Kind() string
	// ServiceClient builds the table service client for this credential.
	ServiceClient() (*aztables.ServiceClient, error)

	credential()
}

// EmulatorCredential targets a local Azurite instance.
type EmulatorCredential struct {
	Endpoint string
}

func (EmulatorCredential) Kind() string { return "emulator" }
func (EmulatorCredential) credential()  {}

func (c EmulatorCredential) ServiceClient() (*aztables.ServiceClient, error) {
	endpoint := c.Endpoint
	if endpoint == "" {
		endpoint = emulatorEndpoint
	}
	cred, err := aztables.NewSharedKeyCredential(emulatorAccount, emulatorKey)
	if err != nil {
		return nil, errors.Wrap(err, "emulator credential")
	}
	opts := &aztables.ClientOptions{ClientOptions: azcore.ClientOptions{InsecureAllowCredentialWithHTTP: true}}
	svc, err := aztables.NewServiceClientWithSharedKey(endpoint, cred, opts)
	return svc, errors.Wrap(err, "emulator service client")
}

// SharedKeyCredential authenticates with an explicit account key.
type SharedKeyCredential struct {
	AccountName string
	AccountKey  string
	Endpoint    string
}

func (SharedKeyCredential) Kind() string { return "shared-key" }
func (SharedKeyCredential) credential()  {}

func (c SharedKeyCredential) ServiceClient() (*aztables.ServiceClient, error) {
	endpoint := c.Endpoint
	if endpoint == "" {
		endpoint = accountEndpoint(c.AccountName)
	}
	cred, err := aztables.NewSharedKeyCredential(c.AccountName, c.AccountKey)
	if err != nil {
		return nil, errors.Wrap(err, "shared key credential")
	}
	svc, err := aztables.NewServiceClientWithSharedKey(endpoint, cred, nil)
	return svc, errors.Wrap(err, "shared key service client")
}

// ManagedIdentityCredential authenticates through the Azure default
// credential chain (managed identity, workload identity, CLI login).
type ManagedIdentityCredential struct {
	AccountName string
}

func (ManagedIdentityCredential) Kind() string { return "managed-identity" }
func (ManagedIdentityCredential) credential()  {}

func (c ManagedIdentityCredential) ServiceClient() (*aztables.ServiceClient, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, errors.Wrap(err, "default azure credential")
	}
	svc, err := aztables.NewServiceClient(accountEndpoint(c.AccountName), cred, nil)
	return svc, errors.Wrap(err, "managed identity service client")
}

func accountEndpoint(account string) string {
	return fmt.Sprintf("https://%s.table.core.windows.net", account)
}

// SelectCredential picks the credential variant from the configured
// connection string and account name. A connection string wins over the
// account name.
func SelectCredential(connectionString, accountName string) (Credential, error) {
	connectionString = strings.TrimSpace(connectionString)
	if connectionString == "" {
		if accountName == "" {
			return nil, ErrNoCredentials
		}
		return ManagedIdentityCredential{AccountName: accountName}, nil
	}

	parts := parseConnectionString(connectionString)
	if strings.EqualFold(parts["usedevelopmentstorage"], "true") {
		endpoint := ""
		if proxy := parts["developmentstorageproxyuri"]; proxy != "" {
			endpoint = strings.TrimRight(proxy, "/") + "/" + emulatorAccount
		}
		return EmulatorCredential{Endpoint: endpoint}, nil
	}

	name, key := parts["accountname"], parts["accountkey"]
	if name == "" || key == "" {
		return nil, errors.New("connection string must contain AccountName and AccountKey")
	}

	endpoint := parts["tableendpoint"]
	if endpoint == "" && parts["endpointsuffix"] != "" {
		protocol := parts["defaultendpointsprotocol"]
		if protocol == "" {
			protocol = "https"
		}
		endpoint = fmt.Sprintf("%s://%s.table.%s", protocol, name, parts["endpointsuffix"])
	}
	return SharedKeyCredential{AccountName: name, AccountKey: key, Endpoint: endpoint}, nil
}

// parseConnectionString splits "Key=Value;Key=Value" with lowercased keys.
// Values may themselves contain '=' (base64 account keys).
func parseConnectionString(s string) map[string]string {
	parts := make(map[string]string)
	for _, pair := range strings.Split(s, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		parts[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return parts
}
