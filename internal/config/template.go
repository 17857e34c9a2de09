package config

// GenerateConfigTemplate returns a commented sample configuration file
func GenerateConfigTemplate() string {
	return `# memstore-backup configuration file
# Place this file at ./memstore-backup.yaml or
# ~/.config/memstore-backup/memstore-backup.yaml

# Protected backends
backends:
  vector:
    provider: embedded              # Vector backend (embedded)
    path: ./data/vector-store.json  # Embedded store state file
    # endpoint: ""                  # Reserved for remote providers
    # api_key: ""
  graph:
    provider: embedded              # Graph backend (embedded)
    path: ./data/graph-store.json   # Embedded store state file
    # endpoint: ""
    # username: ""
    # password: ""

# Backup system configuration
backup:
  # Local manifest/backup storage plus optional offsite replication
  storage:
    provider: local       # Offsite provider (local, s3, azure, gcs)

    local:
      base_path: ./backups    # Backup storage path
      permissions: 0755       # Directory permissions

    # s3:
    #   bucket: my-backups      # S3 bucket name
    #   region: us-east-1       # AWS region
    #   access_key: ""          # AWS access key (or use env var)
    #   secret_key: ""          # AWS secret key (or use env var)

    # azure:
    #   account_name: ""        # Azure storage account name
    #   account_key: ""         # Azure storage account key
    #   container_name: backups # Azure container name

    # gcs:
    #   bucket: my-backups      # GCS bucket name
    #   credentials_path: ""    # Path to GCS credentials JSON file
    #   project_id: ""          # GCP project ID

  # Retention policy
  retention:
    max_backups: 10         # Maximum number of backups to retain (0 = unlimited)
    max_age: 720h           # Maximum age of backups
    cleanup_interval: 24h   # How often to run cleanup
    keep_daily: 0           # Number of daily backups to keep
    keep_weekly: 0          # Number of weekly backups to keep
    keep_monthly: 0         # Number of monthly backups to keep

  # Compression of offsite payloads
  compression:
    enabled: true           # Enable compression
    algorithm: gzip         # Compression algorithm (gzip, lz4, zstd)
    level: 6                # Compression level (algorithm-specific)

  # Encryption of offsite payloads
  encryption:
    enabled: false          # Enable encryption
    key_source: env         # Key source (env, file, passphrase)
    key_env_var: MEMSTORE_BACKUP_ENCRYPTION_KEY
    key_path: ""            # Path to key file (if key_source is 'file')
    # passphrase_env_var: MEMSTORE_BACKUP_PASSPHRASE  # (if key_source is 'passphrase')
    # salt: ""              # Hex-encoded salt, at least 16 bytes

  # Post-operation verification and deadlines
  validation:
    verify_after_backup: true   # Verify backup after creation
    verify_after_restore: true  # Verify components after restore
    operation_timeout: 30m      # Deadline applied to each CLI operation

# Logging
logging:
  level: normal             # quiet, normal, verbose, debug
  format: text              # text, json
  file: ""                  # Optional log file (in addition to stdout)
  show_caller: false

# Environment variable examples:
# MEMSTORE_BACKUP_VECTOR_PATH=/var/lib/memstore/vector-store.json
# MEMSTORE_BACKUP_GRAPH_PATH=/var/lib/memstore/graph-store.json
# MEMSTORE_BACKUP_STORAGE_PROVIDER=s3
# MEMSTORE_BACKUP_S3_BUCKET=my-backups
# MEMSTORE_BACKUP_S3_REGION=us-east-1
# MEMSTORE_BACKUP_MAX_BACKUPS=20
# MEMSTORE_BACKUP_COMPRESSION_ENABLED=true
# MEMSTORE_BACKUP_ENCRYPTION_ENABLED=true
# MEMSTORE_BACKUP_ENCRYPTION_KEY=<64 hex chars>
# MEMSTORE_BACKUP_LOG_LEVEL=verbose
`
}
