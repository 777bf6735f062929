package notify

// User-facing message text.
const (
	MsgPhotosRequired      = "Add at least one photo."
	MsgNameRequired        = "Give the asset a name."
	MsgDescriptionRequired = "Add either a voice or written description."
	MsgMicrophoneDenied    = "Microphone access denied."
	MsgCameraDenied        = "Camera access denied."
	MsgRecording           = "Recording…"
	MsgRecordingStopped    = "Recording stopped."
	MsgCreating            = "Creating asset, please wait…"
	MsgCreated             = "Asset saved successfully!"
	MsgCreateFailed        = "Failed to save asset. Try again."
	MsgUpdated             = "Asset updated."
	MsgUpdateFailed        = "Failed to update asset. Try again."
	MsgNoResult            = "No result found."
	MsgSearchFailed        = "Search failed. Try again."
	MsgFolderCreated       = "Folder created."
	MsgFolderCreateFailed  = "Failed to create folder."
)
