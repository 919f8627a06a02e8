// Package capability describes what a provider instance supports.
//
// Flags are grouped into namespaces. Each namespace owns its own bit
// space, so adding a protocol family never renumbers an existing flag.
package capability

import (
	"fmt"
	"sort"
	"strings"
)

// Namespace groups related flags
type Namespace string

const (
	NamespaceGeneral      Namespace = "general"
	NamespaceTrash        Namespace = "trash"
	NamespaceWebDAV       Namespace = "webdav"
	NamespaceFTPSFTP      Namespace = "ftpsftp"
	NamespaceCloudStorage Namespace = "cloudstorage"
)

const maxFlagsPerNamespace = 64

// Flag is a single named capability
type Flag struct {
	ns   Namespace
	bit  uint8
	name string
}

func (f Flag) Namespace() Namespace { return f.ns }
func (f Flag) Name() string         { return f.name }

// String returns "namespace.name"
func (f Flag) String() string {
	return string(f.ns) + "." + f.name
}

func (f Flag) mask() uint64 { return 1 << f.bit }

var (
	known   = map[string]Flag{}
	counter = map[Namespace]uint8{}
)

func define(ns Namespace, name string) Flag {
	n := counter[ns]
	if int(n) >= maxFlagsPerNamespace {
		panic(fmt.Sprintf("capability: namespace %s is full", ns))
	}
	counter[ns] = n + 1
	f := Flag{ns: ns, bit: n, name: name}
	known[f.String()] = f
	return f
}

// General capabilities
var (
	Read               = define(NamespaceGeneral, "read")
	Write              = define(NamespaceGeneral, "write")
	Create             = define(NamespaceGeneral, "create")
	Delete             = define(NamespaceGeneral, "delete")
	Move               = define(NamespaceGeneral, "move")
	Copy               = define(NamespaceGeneral, "copy")
	Seek               = define(NamespaceGeneral, "seek")
	List               = define(NamespaceGeneral, "list")
	Metadata           = define(NamespaceGeneral, "metadata")
	Stream             = define(NamespaceGeneral, "stream")
	SharedFolder       = define(NamespaceGeneral, "shared_folder")
	ShareLink          = define(NamespaceGeneral, "share_link")
	Versioning         = define(NamespaceGeneral, "versioning")
	ContentHash        = define(NamespaceGeneral, "content_hash")
	AccessControl      = define(NamespaceGeneral, "access_control")
	ExtendedAttributes = define(NamespaceGeneral, "extended_attributes")
	Locking            = define(NamespaceGeneral, "locking")
	Encryption         = define(NamespaceGeneral, "encryption")
	SharingOptions     = define(NamespaceGeneral, "sharing_options")
	TeamFolder         = define(NamespaceGeneral, "team_folder")
	ResumableUpload    = define(NamespaceGeneral, "resumable_upload")
)

// Trash family
var (
	TrashManagement   = define(NamespaceTrash, "trash_management")
	PermanentDeletion = define(NamespaceTrash, "permanent_deletion")
	FileRestoration   = define(NamespaceTrash, "file_restoration")
	EmptyTrash        = define(NamespaceTrash, "empty_trash")
	ListTrash         = define(NamespaceTrash, "list_trash")
	TrashMetadata     = define(NamespaceTrash, "trash_metadata")
)

// WebDAV
var (
	WebDAVClass1              = define(NamespaceWebDAV, "class1_compliance")
	WebDAVClass2              = define(NamespaceWebDAV, "class2_compliance")
	WebDAVClass3              = define(NamespaceWebDAV, "class3_compliance")
	WebDAVAccessControl       = define(NamespaceWebDAV, "access_control")
	WebDAVSearch              = define(NamespaceWebDAV, "search")
	WebDAVCalDAV              = define(NamespaceWebDAV, "caldav")
	WebDAVCardDAV             = define(NamespaceWebDAV, "carddav")
	WebDAVMicrosoftExtensions = define(NamespaceWebDAV, "microsoft_extensions")
	WebDAVNetworkDriveMapping = define(NamespaceWebDAV, "network_drive_mapping")
	WebDAVChunkedUploads      = define(NamespaceWebDAV, "chunked_uploads")
)

// FTP and SFTP
var (
	BasicFTP               = define(NamespaceFTPSFTP, "basic_ftp")
	FTPS                   = define(NamespaceFTPSFTP, "ftps")
	ExtendedFTP            = define(NamespaceFTPSFTP, "extended_ftp")
	SFTP                   = define(NamespaceFTPSFTP, "sftp")
	SFTPv3                 = define(NamespaceFTPSFTP, "sftp_v3")
	SFTPv4Plus             = define(NamespaceFTPSFTP, "sftp_v4_plus")
	SFTPLocking            = define(NamespaceFTPSFTP, "sftp_locking")
	PublicKeyAuth          = define(NamespaceFTPSFTP, "public_key_auth")
	ServerToServerTransfer = define(NamespaceFTPSFTP, "server_to_server_transfer")
	ResumeTransfer         = define(NamespaceFTPSFTP, "resume_transfer")
)

// Cloud object storage
var (
	S3Compatible           = define(NamespaceCloudStorage, "s3_compatible")
	AzureBlobCompatible    = define(NamespaceCloudStorage, "azure_blob_compatible")
	GCPStorageCompatible   = define(NamespaceCloudStorage, "gcp_storage_compatible")
	MultipartUpload        = define(NamespaceCloudStorage, "multipart_upload")
	ServerSideEncryption   = define(NamespaceCloudStorage, "server_side_encryption")
	CustomerProvidedKeys   = define(NamespaceCloudStorage, "customer_provided_keys")
	LifecycleManagement    = define(NamespaceCloudStorage, "lifecycle_management")
	ObjectTagging          = define(NamespaceCloudStorage, "object_tagging")
	ObjectVersioning       = define(NamespaceCloudStorage, "object_versioning")
	RequesterPays          = define(NamespaceCloudStorage, "requester_pays")
	ObjectACLs             = define(NamespaceCloudStorage, "object_acls")
	ObjectLock             = define(NamespaceCloudStorage, "object_lock")
	InventoryReporting     = define(NamespaceCloudStorage, "inventory_reporting")
	BatchOperations        = define(NamespaceCloudStorage, "batch_operations")
	CrossRegionReplication = define(NamespaceCloudStorage, "cross_region_replication")
	StorageTierTransitions = define(NamespaceCloudStorage, "storage_tier_transitions")
	PreSignedURLs          = define(NamespaceCloudStorage, "presigned_urls")
	ServerAccessLogging    = define(NamespaceCloudStorage, "server_access_logging")
)

// ParseFlag looks up a flag by its "namespace.name" form. A bare name is
// looked up in the general and trash namespaces.
func ParseFlag(s string) (Flag, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if f, ok := known[s]; ok {
		return f, nil
	}
	if !strings.Contains(s, ".") {
		for _, ns := range []Namespace{NamespaceGeneral, NamespaceTrash} {
			if f, ok := known[string(ns)+"."+s]; ok {
				return f, nil
			}
		}
	}
	return Flag{}, fmt.Errorf("unknown capability %q", s)
}

// Known returns every defined flag ordered by namespace then bit
func Known() []Flag {
	flags := make([]Flag, 0, len(known))
	for _, f := range known {
		flags = append(flags, f)
	}
	sortFlags(flags)
	return flags
}

func sortFlags(flags []Flag) {
	sort.Slice(flags, func(i, j int) bool {
		if flags[i].ns != flags[j].ns {
			return flags[i].ns < flags[j].ns
		}
		return flags[i].bit < flags[j].bit
	})
}
