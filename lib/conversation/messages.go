package conversation

const (
	actionDownload   = "Download"
	actionReadOnline = "Read Online"
	actionNothing    = "Do Nothing"
)

// maxMessageLen is Telegram's limit for one text message.
const maxMessageLen = 4096

var actions = []string{actionDownload, actionReadOnline, actionNothing}

const (
	msgHelp = "Welcome to the Manga Notifier Bot.\n\n" +
		"Available commands:\n" +
		"/help - Show this message\n" +
		"/add <manga_title> - Add a manga to your list\n" +
		"/list - Show your mangas and stop following one\n" +
		"/download <chapter_url> - Download a chapter\n" +
		"/cancel - Cancel the current operation"

	msgUnknownCommand = "I don't know that command. Send /help to see what I can do."
	msgGenericError   = "An error occurred while processing your request."

	msgAddUsage       = "Please provide a manga title to search for."
	msgNoResults      = "No mangas found for your query."
	msgChooseManga    = "Choose your manga:"
	msgInvalidManga   = "Invalid choice. Please choose a valid manga."
	msgLastChapter    = "Last chapter: %s\nPublished at: %s"
	msgChooseAction   = "What would you like to do?"
	msgInvalidAction  = "Invalid choice. Please choose a valid option."
	msgChapterError   = "An error occurred while retrieving the last chapter."
	msgOutcomeCreated = "%s is now tracked. You're its first reader!"
	msgOutcomeAdded   = "%s was added to your list."
	msgOutcomeAlready = "%s is already on your list."

	msgDownloading   = "Downloading the chapter..."
	msgNoImages      = "No images found for the chapter."
	msgMissingPages  = "%d of %d pages could not be downloaded."
	msgWillNotify    = "You'll be notified when a new chapter is available."
	msgNothingToStop = "There is nothing to cancel."

	msgListEmpty     = "You are not following any manga yet. Use /add <manga_title> to add one."
	msgListHeader    = "Your mangas:"
	msgChooseRemoval = "Choose a manga to stop following, or /cancel to keep them all:"
	msgRemoved       = "You will no longer be notified about %s."

	msgInvalidChapterURL = "Please send a chapter link from %s, like https://%s/chapters/..."
)
