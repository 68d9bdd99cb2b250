package videosplitter

// Version is the current release version.
const Version = "2.0.0"
