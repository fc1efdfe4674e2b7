// Package cli implements chatctl, the command-line client for chatterbox.
//
// chatctl runs a single command when arguments are given and otherwise starts
// an interactive prompt that accepts the same commands:
//
//	signup <name> <email>        create an account (password prompted)
//	verify <email>               mail a verification code and confirm it
//	reset <email>                reset a forgotten password
//	login <email>                start a session and print the token
//	logout                       end the current session
//	me                           show the profile
//	users [keyword]              search users
//	chats                        list chats, newest first
//	dm <userId>                  open the direct chat with a user
//	group <name> <userId>...     create a group chat
//	rename <chatId> <name>       rename a group
//	add|kick <chatId> <userId>   change group membership
//	send <chatId> [text...]      send a message (prompted when text is empty)
//	history <chatId>             list messages of a chat
//	unread                       list unread messages
//	read <chatId>                mark a chat as read
//	avatar <file>                upload a profile picture
//
// The session token comes from -token or CHATTERBOX_TOKEN; login prints a new
// one to export.
package cli
