package security

const (
	errKeyringNotAvailable = "keyring not available"
	keySSHPassphraseFmt    = "ssh-passphrase:%s"
	keyServerFmt           = "server:%s@%s"
)
